package event

import (
	"strings"
	"time"
)

// Type identifies the kind of an event on the wire.
type Type string

// Event is the envelope persisted by the journal.
type Event struct {
	// StreamID is the journal stream the event belongs to.
	StreamID string
	// Seq is the global position in the journal, assigned on commit.
	Seq uint64
	// Version is the position within StreamID, counting inherited fork ranges.
	Version   uint64
	Type      Type
	Timestamp time.Time
	// CommitID groups the events appended atomically by one operation.
	CommitID    string
	CommitIndex int
	CommitSize  int
	PayloadJSON []byte
	Hash        string
	ChainHash   string
}

// EndsCommit reports whether no further event of the same commit follows.
func (e Event) EndsCommit() bool {
	return e.CommitSize == 0 || e.CommitIndex >= e.CommitSize
}

// Readdress returns a copy of the event addressed to another stream with the
// same payload.
func (e Event) Readdress(streamID string) Event {
	e.StreamID = streamID
	e.PayloadJSON = append([]byte(nil), e.PayloadJSON...)
	return e
}

const (
	workspaceStreamPrefix     = "workspace:"
	contentStreamMetaPrefix   = "contentstream:"
	reservedStreamIDSeparator = ":"
)

// WorkspaceStreamID returns the stream holding a workspace's lifecycle events.
func WorkspaceStreamID(name string) string {
	return workspaceStreamPrefix + name
}

// WorkspaceStreamPrefix is the common prefix of every workspace stream.
func WorkspaceStreamPrefix() string {
	return workspaceStreamPrefix
}

// ContentStreamMetaID returns the stream holding a content stream's lifecycle
// events.
func ContentStreamMetaID(contentStreamID string) string {
	return contentStreamMetaPrefix + contentStreamID
}

// IsReservedStreamID reports whether an id collides with the meta stream
// naming scheme and so cannot name a content stream or workspace.
func IsReservedStreamID(id string) bool {
	return strings.Contains(id, reservedStreamIDSeparator)
}
