package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// Head is the state of a stream a commit builds on.
type Head struct {
	Info StreamInfo
	// ChainHash is the chain hash of the last logical event, or "".
	ChainHash string
}

// HeadLookup resolves stream heads inside the transaction a commit is
// prepared in.
type HeadLookup interface {
	Head(ctx context.Context, streamID string) (Head, bool, error)
	// ChainHashAt returns the chain hash of a stream's logical event at a
	// version, or "" for version zero.
	ChainHashAt(ctx context.Context, streamID string, version uint64) (string, error)
}

// Prepared is a validated commit ready to be persisted.
type Prepared struct {
	CommitID string
	Events   []event.Event
	// Heads holds the new head of every stream the commit touches, in the
	// order the commit first touches them.
	Heads []Head
	// Created lists the streams the commit creates.
	Created map[string]bool
}

// Prepare validates a commit against the current heads and assigns sequence
// numbers, versions, commit fields and hashes. Appends are applied in order,
// so a later append sees the effect of an earlier one on the same stream.
func Prepare(ctx context.Context, commit Commit, lookup HeadLookup, nextSeq uint64, now time.Time) (Prepared, error) {
	if len(commit.Appends) == 0 {
		return Prepared{}, errors.New("commit has no appends")
	}
	if commit.ID == "" {
		return Prepared{}, errors.New("commit id is required")
	}

	size := 0
	for _, app := range commit.Appends {
		size += len(app.Events)
	}

	prepared := Prepared{CommitID: commit.ID, Created: make(map[string]bool)}
	heads := make(map[string]*Head)
	var order []string
	index := 0

	current := func(id string) (*Head, bool, error) {
		if head, ok := heads[id]; ok {
			return head, true, nil
		}
		head, ok, err := lookup.Head(ctx, id)
		if err != nil || !ok {
			return nil, ok, err
		}
		heads[id] = &head
		order = append(order, id)
		return heads[id], true, nil
	}

	for _, app := range commit.Appends {
		if app.StreamID == "" {
			return Prepared{}, ErrStreamIDRequired
		}
		head, exists, err := current(app.StreamID)
		if err != nil {
			return Prepared{}, fmt.Errorf("load stream %s: %w", app.StreamID, err)
		}

		if app.Create != nil {
			if exists {
				return Prepared{}, streamExists(app.StreamID)
			}
			head, err = newHead(ctx, app.StreamID, *app.Create, current, lookup)
			if err != nil {
				return Prepared{}, err
			}
			heads[app.StreamID] = head
			order = append(order, app.StreamID)
			prepared.Created[app.StreamID] = true
		} else {
			if !exists {
				return Prepared{}, StreamNotFound(app.StreamID)
			}
			if app.Expected != AnyVersion && app.Expected != head.Info.Version {
				return Prepared{}, &ConcurrentAppendError{StreamID: app.StreamID, Expected: app.Expected, Actual: head.Info.Version}
			}
		}
		if head.Info.Closed && (len(app.Events) > 0 || app.Close) {
			return Prepared{}, streamClosed(app.StreamID)
		}

		for _, evt := range app.Events {
			if evt.Type == "" {
				return Prepared{}, fmt.Errorf("event %d of commit %s has no type", index+1, commit.ID)
			}
			index++
			head.Info.Version++
			evt.StreamID = app.StreamID
			evt.Seq = nextSeq
			evt.Version = head.Info.Version
			evt.CommitID = commit.ID
			evt.CommitIndex = index
			evt.CommitSize = size
			if evt.Timestamp.IsZero() {
				evt.Timestamp = now
			}
			evt.Timestamp = evt.Timestamp.UTC()
			evt.Hash = event.ComputeHash(evt)
			evt.ChainHash = event.ChainHash(head.ChainHash, evt.Hash)
			head.ChainHash = evt.ChainHash
			nextSeq++
			prepared.Events = append(prepared.Events, evt)
		}
		if app.Close {
			head.Info.Closed = true
		}
	}

	for _, id := range order {
		prepared.Heads = append(prepared.Heads, *heads[id])
	}
	return prepared, nil
}

func newHead(ctx context.Context, id string, lineage Lineage, current func(string) (*Head, bool, error), lookup HeadLookup) (*Head, error) {
	head := &Head{Info: StreamInfo{ID: id, Lineage: lineage}}
	if lineage.IsRoot() {
		return head, nil
	}
	parent, ok, err := current(lineage.ParentID)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", lineage.ParentID, err)
	}
	if !ok {
		return nil, StreamNotFound(lineage.ParentID)
	}
	if lineage.ParentVersion > parent.Info.Version {
		return nil, fmt.Errorf("fork %s at version %d: parent %s is at %d: %w",
			id, lineage.ParentVersion, lineage.ParentID, parent.Info.Version, ErrConcurrentAppend)
	}
	head.Info.Version = lineage.ParentVersion
	if lineage.ParentVersion == parent.Info.Version {
		head.ChainHash = parent.ChainHash
		return head, nil
	}
	chain, err := lookup.ChainHashAt(ctx, lineage.ParentID, lineage.ParentVersion)
	if err != nil {
		return nil, fmt.Errorf("chain hash of %s at %d: %w", lineage.ParentID, lineage.ParentVersion, err)
	}
	head.ChainHash = chain
	return head, nil
}
