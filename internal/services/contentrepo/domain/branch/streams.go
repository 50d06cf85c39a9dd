package branch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
)

func checkWorkspaceName(name string) error {
	if name == "" {
		return workspace.ErrNameRequired
	}
	if event.IsReservedStreamID(name) {
		return invalidName("workspace name", name)
	}
	return nil
}

// checkAbsent fails with ErrExists if the workspace stream exists.
func (m *Manager) checkAbsent(ctx context.Context, name string) error {
	_, err := m.Journal.StreamInfo(ctx, event.WorkspaceStreamID(name))
	switch {
	case err == nil:
		return workspace.Exists(name)
	case errors.Is(err, journal.ErrStreamNotFound):
		return nil
	default:
		return err
	}
}

// CreateRootWorkspace creates a workspace without a base on a new stream.
func (m *Manager) CreateRootWorkspace(ctx context.Context, name, streamID string) (workspace.Workspace, error) {
	if err := m.validate(); err != nil {
		return workspace.Workspace{}, err
	}
	if err := checkWorkspaceName(name); err != nil {
		return workspace.Workspace{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.CreateRootWorkspace", trace.WithAttributes(attribute.String("workspace", name)))
	defer span.End()

	streamID, err := m.streamID(streamID)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	unlock := m.lock(workspaceKey(name))
	defer unlock()

	if err := m.checkAbsent(ctx, name); err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	created, err := m.newEvent(event.ContentStreamMetaID(streamID), event.ContentStreamWasCreated{ContentStreamID: streamID})
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	root, err := m.newEvent(event.WorkspaceStreamID(name), event.RootWorkspaceWasCreated{WorkspaceName: name, NewContentStreamID: streamID})
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	written, err := m.commit(ctx,
		journal.Append{StreamID: streamID, Create: &journal.Lineage{}},
		journal.Append{StreamID: event.ContentStreamMetaID(streamID), Create: &journal.Lineage{}, Events: []event.Event{created}},
		journal.Append{StreamID: event.WorkspaceStreamID(name), Create: &journal.Lineage{}, Events: []event.Event{root}},
	)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	m.logf("created root workspace %s on %s", name, streamID)
	return workspace.Fold(name, written[len(written)-1])
}

// CreateWorkspace creates a workspace on a fork of its base's stream.
func (m *Manager) CreateWorkspace(ctx context.Context, name, baseName, streamID string) (workspace.Workspace, error) {
	if err := m.validate(); err != nil {
		return workspace.Workspace{}, err
	}
	if err := checkWorkspaceName(name); err != nil {
		return workspace.Workspace{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.CreateWorkspace", trace.WithAttributes(
		attribute.String("workspace", name),
		attribute.String("base", baseName),
	))
	defer span.End()

	streamID, err := m.streamID(streamID)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	unlock := m.lock(workspaceKey(name), workspaceKey(baseName))
	defer unlock()

	if err := m.checkAbsent(ctx, name); err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	base, err := m.loadWorkspace(ctx, baseName)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	unlockStream := m.lock(streamKey(base.ContentStreamID))
	defer unlockStream()

	info, err := m.Journal.StreamInfo(ctx, base.ContentStreamID)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	appends, err := m.forkAppends(base.ContentStreamID, info.Version, streamID, nil)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	createdEvt, err := m.newEvent(event.WorkspaceStreamID(name), event.WorkspaceWasCreated{
		WorkspaceName:      name,
		BaseWorkspaceName:  baseName,
		NewContentStreamID: streamID,
	})
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	appends = append(appends, journal.Append{StreamID: event.WorkspaceStreamID(name), Create: &journal.Lineage{}, Events: []event.Event{createdEvt}})
	written, err := m.commit(ctx, appends...)
	if err != nil {
		return workspace.Workspace{}, fail(span, err)
	}
	m.logf("created workspace %s on %s forked from %s@%d", name, streamID, base.ContentStreamID, info.Version)
	return workspace.Fold(name, written[len(written)-1])
}

// Fork creates a stream that inherits the current events of source. A removed
// stream cannot be forked.
func (m *Manager) Fork(ctx context.Context, sourceID, newID string) (journal.StreamInfo, error) {
	if err := m.validate(); err != nil {
		return journal.StreamInfo{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.Fork", trace.WithAttributes(attribute.String("source", sourceID)))
	defer span.End()

	newID, err := m.streamID(newID)
	if err != nil {
		return journal.StreamInfo{}, fail(span, err)
	}
	unlock := m.lock(streamKey(sourceID))
	defer unlock()

	info, err := m.Journal.StreamInfo(ctx, sourceID)
	if err != nil {
		return journal.StreamInfo{}, fail(span, err)
	}
	if _, removed, err := m.lifecycle(ctx, sourceID); err != nil {
		return journal.StreamInfo{}, fail(span, err)
	} else if removed {
		return journal.StreamInfo{}, fail(span, journal.StreamNotFound(sourceID))
	}
	appends, err := m.forkAppends(sourceID, info.Version, newID, nil)
	if err != nil {
		return journal.StreamInfo{}, fail(span, err)
	}
	if _, err := m.commit(ctx, appends...); err != nil {
		return journal.StreamInfo{}, fail(span, err)
	}
	m.logf("forked %s@%d to %s", sourceID, info.Version, newID)
	return m.Journal.StreamInfo(ctx, newID)
}

// Remove terminates a content stream no workspace points at and no open
// stream is forked from.
func (m *Manager) Remove(ctx context.Context, streamID string) error {
	if err := m.validate(); err != nil {
		return err
	}
	if streamID == "" || event.IsReservedStreamID(streamID) {
		return invalidName("content stream id", streamID)
	}
	ctx, span := m.tracer().Start(ctx, "branch.Remove", trace.WithAttributes(attribute.String("content_stream", streamID)))
	defer span.End()

	unlock := m.lock(streamKey(streamID))
	defer unlock()

	users, err := m.streamUsers(ctx, streamID)
	if err != nil {
		return fail(span, err)
	}
	if len(users) > 0 {
		return fail(span, inUse(streamID, users))
	}

	info, err := m.Journal.StreamInfo(ctx, streamID)
	if err != nil {
		return fail(span, err)
	}
	meta, removed, err := m.lifecycle(ctx, streamID)
	if err != nil {
		return fail(span, err)
	}
	if removed {
		return fail(span, journal.StreamNotFound(streamID))
	}

	removedEvt, err := m.newEvent(event.ContentStreamMetaID(streamID), event.ContentStreamWasRemoved{ContentStreamID: streamID})
	if err != nil {
		return fail(span, err)
	}
	appends := []journal.Append{{StreamID: event.ContentStreamMetaID(streamID), Expected: uint64(len(meta)), Events: []event.Event{removedEvt}}}
	if !info.Closed {
		appends = append(appends, journal.Append{StreamID: streamID, Expected: info.Version, Close: true})
	}
	if _, err := m.commit(ctx, appends...); err != nil {
		return fail(span, err)
	}
	m.logf("removed content stream %s at version %d", streamID, info.Version)
	return nil
}

// lifecycle reads a content stream's meta stream and reports whether the
// stream was removed.
func (m *Manager) lifecycle(ctx context.Context, streamID string) ([]event.Event, bool, error) {
	meta, err := journal.ReadFullStream(ctx, m.Journal, event.ContentStreamMetaID(streamID))
	if err != nil {
		return nil, false, err
	}
	for _, evt := range meta {
		if evt.Type == event.TypeContentStreamWasRemoved {
			return meta, true, nil
		}
	}
	return meta, false, nil
}

// streamUsers lists the workspaces on streamID and the open streams forked
// from it. A partial discard forks a workspace stream's parent again, so a
// parent stays in use while its fork is open.
func (m *Manager) streamUsers(ctx context.Context, streamID string) ([]string, error) {
	workspaces, err := m.Workspaces(ctx)
	if err != nil {
		return nil, err
	}
	var users []string
	for _, ws := range workspaces {
		if ws.ContentStreamID == streamID {
			users = append(users, ws.Name)
		}
	}
	streams, err := m.Journal.ListStreams(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list content streams: %w", err)
	}
	for _, info := range streams {
		if event.IsReservedStreamID(info.ID) || info.Closed {
			continue
		}
		if info.Lineage.ParentID == streamID {
			users = append(users, info.ID)
		}
	}
	return users, nil
}

// Append validates node payloads against the folded stream and appends them
// in one commit. Pass journal.AnyVersion to skip the expected version check.
func (m *Manager) Append(ctx context.Context, streamID string, expected uint64, payloads ...event.NodePayload) ([]event.Event, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, errors.New("append needs at least one payload")
	}
	ctx, span := m.tracer().Start(ctx, "branch.Append", trace.WithAttributes(
		attribute.String("content_stream", streamID),
		attribute.Int("events", len(payloads)),
	))
	defer span.End()

	unlock := m.lock(streamKey(streamID))
	defer unlock()

	current, err := m.readLineage(ctx, streamID)
	if err != nil {
		return nil, fail(span, err)
	}
	if expected != journal.AnyVersion && expected != current.info.Version {
		return nil, fail(span, &journal.ConcurrentAppendError{StreamID: streamID, Expected: expected, Actual: current.info.Version})
	}
	g, err := m.fold(current.all)
	if err != nil {
		return nil, fail(span, err)
	}

	events := make([]event.Event, 0, len(payloads))
	for i, payload := range payloads {
		evt, err := m.newEvent(streamID, payload)
		if err != nil {
			return nil, fail(span, fmt.Errorf("payload %d: %w", i, err))
		}
		if err := event.DispatchNode(ctx, g, evt, payload); err != nil {
			return nil, fail(span, fmt.Errorf("payload %d (%s): %w", i, payload.EventType(), err))
		}
		events = append(events, evt)
	}
	written, err := m.commit(ctx, journal.Append{StreamID: streamID, Expected: current.info.Version, Events: events})
	if err != nil {
		return nil, fail(span, err)
	}
	return written, nil
}

// Workspace returns the current state of a workspace.
func (m *Manager) Workspace(ctx context.Context, name string) (workspace.Workspace, error) {
	if err := m.validate(); err != nil {
		return workspace.Workspace{}, err
	}
	ws, err := m.loadWorkspace(ctx, name)
	if err != nil {
		return workspace.Workspace{}, err
	}
	ws.Status = m.status(name)
	return ws, nil
}

// Workspaces returns every workspace ordered by name.
func (m *Manager) Workspaces(ctx context.Context) ([]workspace.Workspace, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	streams, err := m.Journal.ListStreams(ctx, event.WorkspaceStreamPrefix())
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	workspaces := make([]workspace.Workspace, 0, len(streams))
	for _, info := range streams {
		name := strings.TrimPrefix(info.ID, event.WorkspaceStreamPrefix())
		ws, err := m.Workspace(ctx, name)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].Name < workspaces[j].Name })
	return workspaces, nil
}

// ContentStream returns the head of a content stream.
func (m *Manager) ContentStream(ctx context.Context, streamID string) (journal.StreamInfo, error) {
	if err := m.validate(); err != nil {
		return journal.StreamInfo{}, err
	}
	if streamID == "" || event.IsReservedStreamID(streamID) {
		return journal.StreamInfo{}, invalidName("content stream id", streamID)
	}
	return m.Journal.StreamInfo(ctx, streamID)
}
