package branch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
)

// Strategy decides what a rebase does with events that no longer apply.
type Strategy int

const (
	// StrategyFail aborts the rebase with a ConflictError.
	StrategyFail Strategy = iota
	// StrategyForce drops conflicting events and records their versions.
	StrategyForce
)

func (s Strategy) String() string {
	if s == StrategyForce {
		return "force"
	}
	return "fail"
}

// RebaseRequest replays a workspace's own events onto the tip of a base.
type RebaseRequest struct {
	Workspace string
	// NewBase moves the workspace onto another base. Empty keeps the current one.
	NewBase  string
	Strategy Strategy
	// NewContentStreamID names the replayed stream. Empty generates one.
	NewContentStreamID string
}

// Result describes how an operation re-pointed a workspace.
type Result struct {
	Workspace               workspace.Workspace
	PreviousContentStreamID string
	// Relocated counts events written to another workspace's stream.
	Relocated int
	// Remaining counts the workspace's own events on its new stream.
	Remaining int
	// Skipped lists versions of the previous stream a forced rebase dropped.
	Skipped []uint64
}

// Rebase forks the base's tip and replays the workspace's own events on it.
func (m *Manager) Rebase(ctx context.Context, req RebaseRequest) (Result, error) {
	if err := m.validate(); err != nil {
		return Result{}, err
	}
	ctx, span := m.tracer().Start(ctx, "branch.Rebase", trace.WithAttributes(
		attribute.String("workspace", req.Workspace),
		attribute.String("strategy", req.Strategy.String()),
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
	baseName := req.NewBase
	if baseName == "" {
		baseName = ws.BaseName
	}
	if err := m.checkBase(ctx, ws.Name, baseName); err != nil {
		return Result{}, fail(span, err)
	}

	unlock := m.lock(workspaceKey(ws.Name), workspaceKey(baseName))
	defer unlock()
	ws, err = m.loadWorkspace(ctx, ws.Name)
	if err != nil {
		return Result{}, fail(span, err)
	}
	base, err := m.loadWorkspace(ctx, baseName)
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
	g, err := m.fold(target.all)
	if err != nil {
		return Result{}, fail(span, err)
	}
	own, _, err := m.split(source.own(), All())
	if err != nil {
		return Result{}, fail(span, err)
	}
	advanced := target.all[commonPrefix(source.all, target.all):]
	kept, conflicts := m.replay(g, own, advanced)
	if len(conflicts) > 0 && req.Strategy != StrategyForce {
		return Result{}, fail(span, &ConflictError{Workspace: ws.Name, Conflicts: conflicts})
	}
	var skipped []uint64
	for _, c := range conflicts {
		skipped = append(skipped, c.Event.Version)
	}

	newID, err := m.streamID(req.NewContentStreamID)
	if err != nil {
		return Result{}, fail(span, err)
	}
	rebased, err := m.newEvent(event.WorkspaceStreamID(ws.Name), event.WorkspaceWasRebased{
		WorkspaceName:           ws.Name,
		BaseWorkspaceName:       baseName,
		NewContentStreamID:      newID,
		PreviousContentStreamID: ws.ContentStreamID,
		SkippedEvents:           skipped,
	})
	if err != nil {
		return Result{}, fail(span, err)
	}
	appends, err := m.forkAppends(base.ContentStreamID, target.info.Version, newID, eventsOf(kept))
	if err != nil {
		return Result{}, fail(span, err)
	}
	appends = append(appends,
		journal.Append{StreamID: ws.ContentStreamID, Expected: source.info.Version, Close: true},
		journal.Append{StreamID: event.WorkspaceStreamID(ws.Name), Expected: ws.Version, Events: []event.Event{rebased}},
	)
	written, err := m.commit(ctx, appends...)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if len(skipped) > 0 {
		m.logf("rebased %s onto %s as %s, skipped %d conflicting events", ws.Name, baseName, newID, len(skipped))
	} else {
		m.logf("rebased %s onto %s as %s with %d events", ws.Name, baseName, newID, len(kept))
	}
	return m.result(ws, written, 0, len(kept), skipped)
}

// checkBase rejects a base that would make the workspace its own ancestor.
func (m *Manager) checkBase(ctx context.Context, name, baseName string) error {
	seen := map[string]bool{name: true}
	for current := baseName; current != ""; {
		if seen[current] {
			return fmt.Errorf("workspace %s cannot be based on %s: %w", name, baseName, ErrConflict)
		}
		seen[current] = true
		ws, err := m.loadWorkspace(ctx, current)
		if err != nil {
			return err
		}
		current = ws.BaseName
	}
	return nil
}

// result folds the workspace event a commit ended with onto ws.
func (m *Manager) result(ws workspace.Workspace, written []event.Event, relocated, remaining int, skipped []uint64) (Result, error) {
	last := written[len(written)-1]
	payload, err := m.Registry.Decode(last)
	if err != nil {
		return Result{}, err
	}
	wp, ok := payload.(event.WorkspacePayload)
	if !ok {
		return Result{}, fmt.Errorf("commit ended with %s", last.Type)
	}
	next := ws
	var previous string
	switch p := wp.(type) {
	case event.WorkspaceWasRebased:
		next.BaseName = p.BaseWorkspaceName
		next.ContentStreamID, previous = p.NewContentStreamID, p.PreviousContentStreamID
	case event.WorkspaceWasPublished:
		next.ContentStreamID, previous = p.NewSourceContentStreamID, p.PreviousSourceContentStreamID
	case event.WorkspaceWasPartiallyPublished:
		next.ContentStreamID, previous = p.NewSourceContentStreamID, p.PreviousSourceContentStreamID
	case event.WorkspaceWasDiscarded:
		next.ContentStreamID, previous = p.NewContentStreamID, p.PreviousContentStreamID
	case event.WorkspaceWasPartiallyDiscarded:
		next.ContentStreamID, previous = p.NewContentStreamID, p.PreviousContentStreamID
	default:
		return Result{}, fmt.Errorf("commit ended with %s", last.Type)
	}
	next.Version = last.Version
	next.Status = workspace.StatusOpen
	return Result{
		Workspace:               next,
		PreviousContentStreamID: previous,
		Relocated:               relocated,
		Remaining:               remaining,
		Skipped:                 skipped,
	}, nil
}
