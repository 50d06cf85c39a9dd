// Package workspace folds workspace lifecycle events into the current state of
// a workspace: which content stream it points at and which workspace it is
// based on.
package workspace

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// Status is the operational state of a workspace.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPublishing Status = "publishing"
	StatusRebasing   Status = "rebasing"
)

var (
	// ErrNameRequired is returned for an empty workspace name.
	ErrNameRequired = apperrors.New(apperrors.CodeWorkspaceNameEmpty, "workspace name is required")
	// ErrNotFound is returned for a workspace without events.
	ErrNotFound = apperrors.New(apperrors.CodeWorkspaceNotFound, "workspace not found")
	// ErrExists is returned when creating a workspace that exists.
	ErrExists = apperrors.New(apperrors.CodeWorkspaceExists, "workspace already exists")
	// ErrBusy is returned when another operation runs on the workspace.
	ErrBusy = apperrors.New(apperrors.CodeWorkspaceBusy, "workspace is busy")
	// ErrHasNoBase is returned for base-relative operations on a root workspace.
	ErrHasNoBase = apperrors.New(apperrors.CodeWorkspaceHasNoBase, "workspace has no base workspace")
)

// Workspace is a named pointer to a content stream.
type Workspace struct {
	Name            string
	BaseName        string
	ContentStreamID string
	Status          Status
	// Version is the version of the workspace's own lifecycle stream.
	Version uint64
}

// IsRoot reports whether the workspace has no base.
func (w Workspace) IsRoot() bool {
	return w.BaseName == ""
}

// NotFound returns ErrNotFound for a name.
func NotFound(name string) error {
	return apperrors.WithMetadata(apperrors.CodeWorkspaceNotFound,
		fmt.Sprintf("workspace %q not found", name), map[string]string{"workspace": name})
}

// Exists returns ErrExists for a name.
func Exists(name string) error {
	return apperrors.WithMetadata(apperrors.CodeWorkspaceExists,
		fmt.Sprintf("workspace %q already exists", name), map[string]string{"workspace": name})
}

// Busy returns ErrBusy for a name and its current status.
func Busy(name string, status Status) error {
	return apperrors.WithMetadata(apperrors.CodeWorkspaceBusy,
		fmt.Sprintf("workspace %q is %s", name, status), map[string]string{"workspace": name, "status": string(status)})
}

// HasNoBase returns ErrHasNoBase for a name.
func HasNoBase(name string) error {
	return apperrors.WithMetadata(apperrors.CodeWorkspaceHasNoBase,
		fmt.Sprintf("workspace %q has no base workspace", name), map[string]string{"workspace": name})
}

type state struct {
	ws      Workspace
	created bool
}

var registry = event.NewRegistry()

// Fold builds a workspace from the events of its lifecycle stream.
func Fold(name string, events ...event.Event) (Workspace, error) {
	s := &state{ws: Workspace{Name: name, Status: StatusOpen}}
	ctx := context.Background()
	for _, evt := range events {
		payload, err := registry.Decode(evt)
		if err != nil {
			return Workspace{}, fmt.Errorf("decode workspace event %d: %w", evt.Version, err)
		}
		wp, ok := payload.(event.WorkspacePayload)
		if !ok {
			return Workspace{}, fmt.Errorf("workspace stream %s holds %s", name, evt.Type)
		}
		if wp.Workspace() != name {
			return Workspace{}, fmt.Errorf("workspace stream %s holds an event for %s", name, wp.Workspace())
		}
		if err := event.DispatchWorkspace(ctx, s, evt, wp); err != nil {
			return Workspace{}, err
		}
		s.ws.Version = evt.Version
	}
	if !s.created {
		return Workspace{}, NotFound(name)
	}
	return s.ws, nil
}

func (s *state) create(base, streamID string) error {
	if s.created {
		return Exists(s.ws.Name)
	}
	s.created = true
	s.ws.BaseName = base
	s.ws.ContentStreamID = streamID
	return nil
}

func (s *state) repoint(streamID string) error {
	if !s.created {
		return NotFound(s.ws.Name)
	}
	s.ws.ContentStreamID = streamID
	return nil
}

func (s *state) WhenRootWorkspaceWasCreated(_ context.Context, _ event.Event, p event.RootWorkspaceWasCreated) error {
	return s.create("", p.NewContentStreamID)
}

func (s *state) WhenWorkspaceWasCreated(_ context.Context, _ event.Event, p event.WorkspaceWasCreated) error {
	return s.create(p.BaseWorkspaceName, p.NewContentStreamID)
}

func (s *state) WhenWorkspaceWasRebased(_ context.Context, _ event.Event, p event.WorkspaceWasRebased) error {
	if err := s.repoint(p.NewContentStreamID); err != nil {
		return err
	}
	if p.BaseWorkspaceName != "" {
		s.ws.BaseName = p.BaseWorkspaceName
	}
	return nil
}

func (s *state) WhenWorkspaceWasPublished(_ context.Context, _ event.Event, p event.WorkspaceWasPublished) error {
	return s.repoint(p.NewSourceContentStreamID)
}

func (s *state) WhenWorkspaceWasPartiallyPublished(_ context.Context, _ event.Event, p event.WorkspaceWasPartiallyPublished) error {
	return s.repoint(p.NewSourceContentStreamID)
}

func (s *state) WhenWorkspaceWasDiscarded(_ context.Context, _ event.Event, p event.WorkspaceWasDiscarded) error {
	return s.repoint(p.NewContentStreamID)
}

func (s *state) WhenWorkspaceWasPartiallyDiscarded(_ context.Context, _ event.Event, p event.WorkspaceWasPartiallyDiscarded) error {
	return s.repoint(p.NewContentStreamID)
}
