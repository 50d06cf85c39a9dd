package branch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
)

// PublishRequest moves selected changes of a workspace to its base.
type PublishRequest struct {
	Workspace string
	Selection Selection
	// NewContentStreamID names the workspace's fresh stream. Empty generates one.
	NewContentStreamID string
}

// Publish appends the selected events to the base workspace's stream and
// re-points the workspace at a fork of the new base tip carrying the
// unselected events. A refused publish commits nothing.
func (m *Manager) Publish(ctx context.Context, req PublishRequest) (Result, error) {
	if err := m.validate(); err != nil {
		return Result{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.Publish", trace.WithAttributes(
		attribute.String("workspace", req.Workspace),
		attribute.Bool("all", req.Selection.IsAll()),
	))
	defer span.End()

	end, err := m.begin(req.Workspace, workspace.StatusPublishing)
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
	target, err := m.readLineage(ctx, base.ContentStreamID)
	if err != nil {
		return Result{}, fail(span, err)
	}
	selected, rest, err := m.split(source.own(), req.Selection)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if len(selected) == 0 {
		return Result{Workspace: ws, PreviousContentStreamID: ws.ContentStreamID, Remaining: len(rest)}, nil
	}

	refuse := func(conflicts []Conflict) (Result, error) {
		return Result{}, fail(span, &PublishConflictError{Workspace: ws.Name, Target: base.Name, Conflicts: conflicts})
	}

	// Events the target gained, or lost, since the workspace was forked.
	shared := commonPrefix(source.all, target.all)
	diverged := append(append([]event.Event(nil), target.all[shared:]...), source.inherited()[min(shared, len(source.inherited())):]...)
	if conflicts := m.touching(selected, diverged); len(conflicts) > 0 {
		return refuse(conflicts)
	}

	g, err := m.fold(target.all)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if _, conflicts := m.replay(g, selected, target.all); len(conflicts) > 0 {
		return refuse(conflicts)
	}
	if _, conflicts := m.replay(g, rest, target.all); len(conflicts) > 0 {
		return refuse(conflicts)
	}

	newID, err := m.streamID(req.NewContentStreamID)
	if err != nil {
		return Result{}, fail(span, err)
	}
	var published event.Payload
	if req.Selection.IsAll() || len(rest) == 0 {
		published = event.WorkspaceWasPublished{
			SourceWorkspaceName:           ws.Name,
			TargetWorkspaceName:           base.Name,
			NewSourceContentStreamID:      newID,
			PreviousSourceContentStreamID: ws.ContentStreamID,
		}
	} else {
		published = event.WorkspaceWasPartiallyPublished{
			SourceWorkspaceName:           ws.Name,
			TargetWorkspaceName:           base.Name,
			NewSourceContentStreamID:      newID,
			PreviousSourceContentStreamID: ws.ContentStreamID,
			PublishedNodeAggregateIDs:     aggregateIDs(selected),
		}
	}
	wsEvent, err := m.newEvent(event.WorkspaceStreamID(ws.Name), published)
	if err != nil {
		return Result{}, fail(span, err)
	}

	tip := target.info.Version + uint64(len(selected))
	fork, err := m.forkAppends(base.ContentStreamID, tip, newID, eventsOf(rest))
	if err != nil {
		return Result{}, fail(span, err)
	}
	appends := []journal.Append{{StreamID: base.ContentStreamID, Expected: target.info.Version, Events: relocate(eventsOf(selected), base.ContentStreamID)}}
	appends = append(appends, fork...)
	appends = append(appends,
		journal.Append{StreamID: ws.ContentStreamID, Expected: source.info.Version, Close: true},
		journal.Append{StreamID: event.WorkspaceStreamID(ws.Name), Expected: ws.Version, Events: []event.Event{wsEvent}},
	)
	written, err := m.commit(ctx, appends...)
	if err != nil {
		return Result{}, fail(span, err)
	}
	m.logf("published %d events from %s to %s, %d remain on %s", len(selected), ws.Name, base.Name, len(rest), newID)
	return m.result(ws, written, len(selected), len(rest), nil)
}

// touching reports every diverged event that changed a selected aggregate.
func (m *Manager) touching(selected []indexed, diverged []event.Event) []Conflict {
	first := make(map[string]indexed, len(selected))
	for _, item := range selected {
		if _, ok := first[item.aggregateID]; !ok {
			first[item.aggregateID] = item
		}
	}
	var conflicts []Conflict
	for _, evt := range diverged {
		payload, err := m.nodePayload(evt)
		if err != nil {
			continue
		}
		item, ok := first[payload.AggregateID()]
		if !ok {
			continue
		}
		prior := evt
		conflicts = append(conflicts, Conflict{Index: item.index, Event: item.evt, PriorEvent: &prior, Cause: ErrTargetChanged})
	}
	return conflicts
}

func aggregateIDs(items []indexed) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.aggregateID] {
			seen[item.aggregateID] = true
			ids = append(ids, item.aggregateID)
		}
	}
	return ids
}
