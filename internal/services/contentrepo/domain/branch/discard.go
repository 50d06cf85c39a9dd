package branch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
)

// DiscardRequest abandons selected changes of a workspace.
type DiscardRequest struct {
	Workspace string
	Selection Selection
	// NewContentStreamID names the workspace's fresh stream. Empty generates one.
	NewContentStreamID string
}

// Discard re-points a workspace at a fresh stream without the selected
// changes. A full discard forks the base's tip; a partial discard forks the
// workspace's own fork point and replays the retained events.
func (m *Manager) Discard(ctx context.Context, req DiscardRequest) (Result, error) {
	if err := m.validate(); err != nil {
		return Result{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.Discard", trace.WithAttributes(
		attribute.String("workspace", req.Workspace),
		attribute.Bool("all", req.Selection.IsAll()),
	))
	defer span.End()

	end, err := m.begin(req.Workspace, workspace.StatusRebasing)
	if err != nil {
		return Result{}, fail(span, err)
	}
	defer end()

	ws, err := m.loadWorkspace(ctx, req.Workspace)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if ws.IsRoot() {
		return Result{}, fail(span, workspace.HasNoBase(ws.Name))
	}
	unlock := m.lock(workspaceKey(ws.Name), workspaceKey(ws.BaseName))
	defer unlock()
	ws, err = m.loadWorkspace(ctx, ws.Name)
	if err != nil {
		return Result{}, fail(span, err)
	}
	base, err := m.loadWorkspace(ctx, ws.BaseName)
	if err != nil {
		return Result{}, fail(span, err)
	}
	unlockStreams := m.lock(streamKey(ws.ContentStreamID), streamKey(base.ContentStreamID))
	defer unlockStreams()

	source, err := m.readLineage(ctx, ws.ContentStreamID)
	if err != nil {
		return Result{}, fail(span, err)
	}
	discarded, retained, err := m.split(source.own(), req.Selection)
	if err != nil {
		return Result{}, fail(span, err)
	}

	newID, err := m.streamID(req.NewContentStreamID)
	if err != nil {
		return Result{}, fail(span, err)
	}
	var (
		fork    []journal.Append
		payload event.Payload
	)
	if req.Selection.IsAll() {
		info, err := m.Journal.StreamInfo(ctx, base.ContentStreamID)
		if err != nil {
			return Result{}, fail(span, err)
		}
		fork, err = m.forkAppends(base.ContentStreamID, info.Version, newID, nil)
		if err != nil {
			return Result{}, fail(span, err)
		}
		payload = event.WorkspaceWasDiscarded{
			WorkspaceName:           ws.Name,
			NewContentStreamID:      newID,
			PreviousContentStreamID: ws.ContentStreamID,
		}
	} else {
		if len(discarded) == 0 {
			return Result{Workspace: ws, PreviousContentStreamID: ws.ContentStreamID, Remaining: len(retained)}, nil
		}
		g, err := m.fold(source.inherited())
		if err != nil {
			return Result{}, fail(span, err)
		}
		if _, conflicts := m.replay(g, retained, source.inherited()); len(conflicts) > 0 {
			return Result{}, fail(span, &ConflictError{Workspace: ws.Name, Conflicts: conflicts})
		}
		parent := source.info.Lineage
		fork, err = m.forkAppends(parent.ParentID, parent.ParentVersion, newID, eventsOf(retained))
		if err != nil {
			return Result{}, fail(span, err)
		}
		payload = event.WorkspaceWasPartiallyDiscarded{
			WorkspaceName:             ws.Name,
			NewContentStreamID:        newID,
			PreviousContentStreamID:   ws.ContentStreamID,
			DiscardedNodeAggregateIDs: aggregateIDs(discarded),
		}
	}

	wsEvent, err := m.newEvent(event.WorkspaceStreamID(ws.Name), payload)
	if err != nil {
		return Result{}, fail(span, err)
	}
	appends := append(fork,
		journal.Append{StreamID: ws.ContentStreamID, Expected: source.info.Version, Close: true},
		journal.Append{StreamID: event.WorkspaceStreamID(ws.Name), Expected: ws.Version, Events: []event.Event{wsEvent}},
	)
	written, err := m.commit(ctx, appends...)
	if err != nil {
		return Result{}, fail(span, err)
	}
	remaining := len(retained)
	if req.Selection.IsAll() {
		remaining = 0
	}
	m.logf("discarded %d events of %s, %d remain on %s", len(discarded), ws.Name, remaining, newID)
	return m.result(ws, written, 0, remaining, nil)
}
