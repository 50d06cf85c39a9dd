// Package branch moves changes between workspaces.
//
// A workspace points at a content stream. Branch operations never rewrite a
// stream: they fork a fresh stream, relocate events onto it and re-point the
// workspace, all in one journal commit. The previous stream is closed in the
// same commit.
package branch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/contentrepo/internal/platform/id"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/nodeaggregate"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
)

// Manager runs workspace and content stream operations against a journal.
type Manager struct {
	Journal    journal.Journal
	Registry   *event.Registry
	Dimensions *dimension.VariationGraph
	NewID      func() (string, error)
	Now        func() time.Time
	Logf       func(format string, args ...any)
	Tracer     trace.Tracer

	mu    sync.Mutex
	locks map[string]*keyLock
	busy  map[string]workspace.Status
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (m *Manager) tracer() trace.Tracer {
	if m.Tracer != nil {
		return m.Tracer
	}
	return otel.Tracer("contentrepo/branch")
}

func (m *Manager) logf(format string, args ...any) {
	if m.Logf != nil {
		m.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Manager) newID() (string, error) {
	if m.NewID != nil {
		return m.NewID()
	}
	return id.NewID()
}

func (m *Manager) validate() error {
	if m.Journal == nil {
		return errors.New("journal is required")
	}
	if m.Registry == nil {
		return errors.New("event registry is required")
	}
	if m.Dimensions == nil {
		return errors.New("variation graph is required")
	}
	return nil
}

// lock serializes writers on a set of keys. Keys are taken in sorted order;
// callers that lock twice take workspace keys before stream keys.
func (m *Manager) lock(keys ...string) (unlock func()) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	unique := sorted[:0]
	for i, key := range sorted {
		if i == 0 || key != sorted[i-1] {
			unique = append(unique, key)
		}
	}

	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*keyLock)
	}
	held := make([]*keyLock, 0, len(unique))
	for _, key := range unique {
		l, ok := m.locks[key]
		if !ok {
			l = &keyLock{}
			m.locks[key] = l
		}
		l.refs++
		held = append(held, l)
	}
	m.mu.Unlock()

	for _, l := range held {
		l.mu.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		m.mu.Lock()
		for i, key := range unique {
			held[i].refs--
			if held[i].refs == 0 {
				delete(m.locks, key)
			}
		}
		m.mu.Unlock()
	}
}

// begin marks a workspace busy for the duration of an operation.
func (m *Manager) begin(name string, status workspace.Status) (end func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy == nil {
		m.busy = make(map[string]workspace.Status)
	}
	if current, ok := m.busy[name]; ok {
		return nil, workspace.Busy(name, current)
	}
	m.busy[name] = status
	return func() {
		m.mu.Lock()
		delete(m.busy, name)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) status(name string) workspace.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.busy[name]; ok {
		return status
	}
	return workspace.StatusOpen
}

func workspaceKey(name string) string { return "workspace/" + name }
func streamKey(id string) string      { return "stream/" + id }

func (m *Manager) loadWorkspace(ctx context.Context, name string) (workspace.Workspace, error) {
	if name == "" {
		return workspace.Workspace{}, workspace.ErrNameRequired
	}
	events, err := journal.ReadFullStream(ctx, m.Journal, event.WorkspaceStreamID(name))
	if errors.Is(err, journal.ErrStreamNotFound) {
		return workspace.Workspace{}, workspace.NotFound(name)
	}
	if err != nil {
		return workspace.Workspace{}, fmt.Errorf("read workspace %s: %w", name, err)
	}
	return workspace.Fold(name, events...)
}

// lineage is a content stream's events split at its fork point.
type lineage struct {
	info journal.StreamInfo
	all  []event.Event
}

// inherited returns the events the stream was forked with.
func (l lineage) inherited() []event.Event {
	return l.all[:l.info.Lineage.ParentVersion]
}

// own returns the events appended to the stream itself.
func (l lineage) own() []event.Event {
	return l.all[l.info.Lineage.ParentVersion:]
}

func (m *Manager) readLineage(ctx context.Context, streamID string) (lineage, error) {
	info, err := m.Journal.StreamInfo(ctx, streamID)
	if err != nil {
		return lineage{}, fmt.Errorf("stream info %s: %w", streamID, err)
	}
	all, err := journal.ReadFullStream(ctx, m.Journal, streamID)
	if err != nil {
		return lineage{}, fmt.Errorf("read stream %s: %w", streamID, err)
	}
	if uint64(len(all)) != info.Version || info.Lineage.ParentVersion > info.Version {
		return lineage{}, fmt.Errorf("stream %s read %d events at version %d", streamID, len(all), info.Version)
	}
	return lineage{info: info, all: all}, nil
}

func (m *Manager) fold(events []event.Event) (*nodeaggregate.Graph, error) {
	g := nodeaggregate.NewGraph(m.Dimensions)
	if err := nodeaggregate.Fold(g, events...); err != nil {
		return nil, err
	}
	return g, nil
}

// nodePayload decodes a content stream event.
func (m *Manager) nodePayload(evt event.Event) (event.NodePayload, error) {
	payload, err := m.Registry.Decode(evt)
	if err != nil {
		return nil, err
	}
	node, ok := payload.(event.NodePayload)
	if !ok {
		return nil, fmt.Errorf("event %s@%d does not belong to a content stream", evt.Type, evt.Version)
	}
	return node, nil
}

func (m *Manager) newEvent(streamID string, payload event.Payload) (event.Event, error) {
	evt, err := event.New(streamID, payload, m.now())
	if err != nil {
		return event.Event{}, err
	}
	return m.Registry.ValidateForAppend(evt)
}

// relocate copies events for appending to another stream. Payloads and
// timestamps are kept; positions are reassigned on commit.
func relocate(events []event.Event, streamID string) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, evt := range events {
		out = append(out, event.Event{
			StreamID:    streamID,
			Type:        evt.Type,
			Timestamp:   evt.Timestamp,
			PayloadJSON: append([]byte(nil), evt.PayloadJSON...),
		})
	}
	return out
}

// forkAppends creates a stream forked from source at version with events
// appended on top, plus its lifecycle stream.
func (m *Manager) forkAppends(sourceID string, version uint64, newID string, events []event.Event) ([]journal.Append, error) {
	forked, err := m.newEvent(event.ContentStreamMetaID(newID), event.ContentStreamWasForked{
		NewContentStreamID:           newID,
		SourceContentStreamID:        sourceID,
		VersionOfSourceContentStream: version,
	})
	if err != nil {
		return nil, err
	}
	// The fork event precedes the relocated events in the global order so
	// projections can branch their state before applying them.
	return []journal.Append{
		{StreamID: event.ContentStreamMetaID(newID), Create: &journal.Lineage{}, Events: []event.Event{forked}},
		{StreamID: newID, Create: &journal.Lineage{ParentID: sourceID, ParentVersion: version}, Events: relocate(events, newID)},
	}, nil
}

func (m *Manager) streamID(requested string) (string, error) {
	if requested != "" {
		if event.IsReservedStreamID(requested) {
			return "", invalidName("content stream id", requested)
		}
		return requested, nil
	}
	return m.newID()
}

func (m *Manager) commit(ctx context.Context, appends ...journal.Append) ([]event.Event, error) {
	commitID, err := m.newID()
	if err != nil {
		return nil, err
	}
	return m.Journal.Commit(ctx, journal.Commit{ID: commitID, Appends: appends})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}

// Selection picks the aggregates a publish or discard applies to.
type Selection struct {
	all bool
	ids map[string]bool
}

// All selects every change of a workspace.
func All() Selection {
	return Selection{all: true}
}

// Aggregates selects the changes of the given node aggregates.
func Aggregates(ids ...string) Selection {
	s := Selection{ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

// IsAll reports whether the selection covers every change.
func (s Selection) IsAll() bool {
	return s.all
}

// Includes reports whether an aggregate is selected.
func (s Selection) Includes(aggregateID string) bool {
	return s.all || s.ids[aggregateID]
}

// IDs returns the selected aggregate ids in order. It is empty for All.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// split partitions events by selection, keeping the index of every event.
func (m *Manager) split(events []event.Event, sel Selection) (selected, rest []indexed, err error) {
	for i, evt := range events {
		payload, err := m.nodePayload(evt)
		if err != nil {
			return nil, nil, err
		}
		item := indexed{index: i, evt: evt, aggregateID: payload.AggregateID()}
		if sel.Includes(item.aggregateID) {
			selected = append(selected, item)
		} else {
			rest = append(rest, item)
		}
	}
	return selected, rest, nil
}

type indexed struct {
	index       int
	evt         event.Event
	aggregateID string
}

func eventsOf(items []indexed) []event.Event {
	out := make([]event.Event, 0, len(items))
	for _, item := range items {
		out = append(out, item.evt)
	}
	return out
}

// replay applies events to g in order. Events that no longer apply are left
// out of kept and reported with the last prior event on their aggregate.
func (m *Manager) replay(g *nodeaggregate.Graph, items []indexed, prior []event.Event) (kept []indexed, conflicts []Conflict) {
	ctx := context.Background()
	for _, item := range items {
		payload, err := m.nodePayload(item.evt)
		if err == nil {
			err = nodeaggregate.Apply(ctx, g, item.evt, payload)
		}
		if err != nil {
			conflicts = append(conflicts, Conflict{
				Index:      item.index,
				Event:      item.evt,
				PriorEvent: m.lastTouching(prior, item.aggregateID),
				Cause:      err,
			})
			continue
		}
		kept = append(kept, item)
	}
	return kept, conflicts
}

// lastTouching returns the last event in events that changed an aggregate.
func (m *Manager) lastTouching(events []event.Event, aggregateID string) *event.Event {
	for i := len(events) - 1; i >= 0; i-- {
		payload, err := m.nodePayload(events[i])
		if err != nil {
			continue
		}
		if payload.AggregateID() == aggregateID {
			evt := events[i]
			return &evt
		}
	}
	return nil
}

// commonPrefix returns how many leading events two logical streams share.
// Inherited events keep their global sequence number, so equal sequence
// numbers mean the same physical event.
func commonPrefix(a, b []event.Event) int {
	n := 0
	for n < len(a) && n < len(b) && a[n].Seq == b[n].Seq {
		n++
	}
	return n
}
