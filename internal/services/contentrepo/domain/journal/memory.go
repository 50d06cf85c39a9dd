package journal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/contentrepo/internal/platform/id"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// Memory is an in-process journal. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	events  []event.Event
	streams map[string]*memoryStream
	now     func() time.Time
}

type memoryStream struct {
	head Head
	// own holds indexes into Memory.events of events appended to this stream.
	own []int
}

// NewMemory returns an empty journal.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string]*memoryStream),
		now:     time.Now,
	}
}

// Commit applies a commit atomically.
func (m *Memory) Commit(ctx context.Context, commit Commit) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if commit.ID == "" {
		commitID, err := id.NewID()
		if err != nil {
			return nil, err
		}
		commit.ID = commitID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prepared, err := Prepare(ctx, commit, memoryLookup{m}, uint64(len(m.events))+1, m.now().UTC())
	if err != nil {
		return nil, err
	}
	for _, head := range prepared.Heads {
		stream, ok := m.streams[head.Info.ID]
		if !ok {
			stream = &memoryStream{}
			m.streams[head.Info.ID] = stream
		}
		stream.head = head
	}
	for _, evt := range prepared.Events {
		m.events = append(m.events, evt)
		stream := m.streams[evt.StreamID]
		stream.own = append(stream.own, len(m.events)-1)
	}
	return append([]event.Event(nil), prepared.Events...), nil
}

// ReadStream returns the logical stream after a version.
func (m *Memory) ReadStream(ctx context.Context, streamID string, afterVersion uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stream, ok := m.streams[streamID]
	if !ok {
		return nil, StreamNotFound(streamID)
	}
	events := m.logical(streamID, stream.head.Info.Version)
	out := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if evt.Version <= afterVersion {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// logical returns the events of a stream up to a version, inherited range
// first, all addressed to streamID. The caller holds the lock.
func (m *Memory) logical(streamID string, upTo uint64) []event.Event {
	stream := m.streams[streamID]
	var out []event.Event
	if lineage := stream.head.Info.Lineage; !lineage.IsRoot() {
		limit := min(lineage.ParentVersion, upTo)
		for _, evt := range m.logical(lineage.ParentID, limit) {
			out = append(out, evt.Readdress(streamID))
		}
	}
	for _, idx := range stream.own {
		evt := m.events[idx]
		if evt.Version > upTo {
			break
		}
		out = append(out, evt.Readdress(streamID))
	}
	return out
}

// ReadAll returns events in global order after a sequence number.
func (m *Memory) ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if afterSeq >= uint64(len(m.events)) {
		return nil, nil
	}
	end := len(m.events)
	if limit > 0 && int(afterSeq)+limit < end {
		end = int(afterSeq) + limit
	}
	out := make([]event.Event, 0, end-int(afterSeq))
	for _, evt := range m.events[afterSeq:end] {
		out = append(out, evt.Readdress(evt.StreamID))
	}
	return out, nil
}

// StreamInfo returns the head of a stream.
func (m *Memory) StreamInfo(ctx context.Context, streamID string) (StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return StreamInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stream, ok := m.streams[streamID]
	if !ok {
		return StreamInfo{}, StreamNotFound(streamID)
	}
	return stream.head.Info, nil
}

// ListStreams returns the streams whose id has the prefix, ordered by id.
func (m *Memory) ListStreams(ctx context.Context, prefix string) ([]StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []StreamInfo
	for streamID, stream := range m.streams {
		if strings.HasPrefix(streamID, prefix) {
			out = append(out, stream.head.Info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryLookup struct {
	m *Memory
}

func (l memoryLookup) Head(_ context.Context, streamID string) (Head, bool, error) {
	stream, ok := l.m.streams[streamID]
	if !ok {
		return Head{}, false, nil
	}
	return stream.head, true, nil
}

func (l memoryLookup) ChainHashAt(_ context.Context, streamID string, version uint64) (string, error) {
	if version == 0 {
		return "", nil
	}
	if _, ok := l.m.streams[streamID]; !ok {
		return "", StreamNotFound(streamID)
	}
	events := l.m.logical(streamID, version)
	if len(events) == 0 {
		return "", nil
	}
	return events[len(events)-1].ChainHash, nil
}
