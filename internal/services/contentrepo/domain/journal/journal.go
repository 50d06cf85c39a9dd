// Package journal defines the event log the repository is built on.
//
// The log is a set of streams sharing one global sequence. A stream is either
// created empty or forked from another stream at a version: reading a fork
// yields the inherited range re-addressed to the fork, then its own events.
// Writes happen in commits. A commit appends to one or more streams
// atomically and every event it writes carries the commit id, its index in
// the commit and the commit size, so readers can tell where a commit ends.
package journal

import (
	"context"
	"math"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// AnyVersion disables the expected version check of an Append.
const AnyVersion uint64 = math.MaxUint64

// Lineage records where a stream was forked from. A zero Lineage describes a
// stream without a parent.
type Lineage struct {
	ParentID      string
	ParentVersion uint64
}

// IsRoot reports whether the lineage has no parent.
func (l Lineage) IsRoot() bool {
	return l.ParentID == ""
}

// StreamInfo describes the head of a stream.
type StreamInfo struct {
	ID      string
	Version uint64
	Lineage Lineage
	Closed  bool
}

// Append is the part of a commit that targets one stream.
type Append struct {
	StreamID string
	// Expected is the version the stream must be at. Ignored when creating.
	Expected uint64
	// Create makes the append create the stream. It fails if the stream exists.
	Create *Lineage
	Events []event.Event
	// Close rejects further appends once the commit is applied.
	Close bool
}

// Commit is a unit of atomic writes.
type Commit struct {
	ID      string
	Appends []Append
}

// Reader reads the log.
type Reader interface {
	// ReadStream returns the logical stream after a version, inherited range
	// included. A limit of zero reads to the end.
	ReadStream(ctx context.Context, streamID string, afterVersion uint64, limit int) ([]event.Event, error)
	// ReadAll returns physical events in global order after a sequence number.
	ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	StreamInfo(ctx context.Context, streamID string) (StreamInfo, error)
	ListStreams(ctx context.Context, prefix string) ([]StreamInfo, error)
}

// Writer commits to the log.
type Writer interface {
	// Commit applies every append or none and returns the written events with
	// their assigned positions.
	Commit(ctx context.Context, commit Commit) ([]event.Event, error)
}

// Journal is the full log.
type Journal interface {
	Reader
	Writer
}

// ReadFullStream reads a logical stream from the start.
func ReadFullStream(ctx context.Context, r Reader, streamID string) ([]event.Event, error) {
	return r.ReadStream(ctx, streamID, 0, 0)
}
