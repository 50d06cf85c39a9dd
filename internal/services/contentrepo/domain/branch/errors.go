package branch

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

var (
	// ErrConflict is matched by every ConflictError.
	ErrConflict = apperrors.New(apperrors.CodeBranchConflict, "branch conflict")
	// ErrPublishConflict is matched by every PublishConflictError.
	ErrPublishConflict = apperrors.New(apperrors.CodePublishConflict, "publish conflict")
	// ErrContentStreamInUse is returned when removing a stream a workspace points at.
	ErrContentStreamInUse = apperrors.New(apperrors.CodeContentStreamInUse, "content stream is in use")
	// ErrTargetChanged is the cause recorded for events the target changed
	// since the workspace was forked.
	ErrTargetChanged = apperrors.New(apperrors.CodePublishConflict, "target changed the aggregate")
)

// Conflict is one workspace event that could not be relocated.
type Conflict struct {
	// Index is the position of Event among the workspace's own events.
	Index int
	Event event.Event
	// PriorEvent is the base event that last touched the same aggregate, if any.
	PriorEvent *event.Event
	Cause      error
}

func (c Conflict) String() string {
	prior := ""
	if c.PriorEvent != nil {
		prior = fmt.Sprintf(" after %s@%d", c.PriorEvent.Type, c.PriorEvent.Seq)
	}
	return fmt.Sprintf("#%d %s%s: %v", c.Index, c.Event.Type, prior, c.Cause)
}

func describe(conflicts []Conflict) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "; ")
}

// ConflictError reports workspace events that no longer apply on a rebase or
// partial discard. Nothing was committed.
type ConflictError struct {
	Workspace string
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("workspace %s has %d conflicting events: %s", e.Workspace, len(e.Conflicts), describe(e.Conflicts))
}

func (e *ConflictError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeBranchConflict, e.Error(), map[string]string{
		"workspace": e.Workspace,
		"conflicts": fmt.Sprint(len(e.Conflicts)),
	})
}

// PublishConflictError reports why a publish was refused. Nothing was
// committed and the workspace still points at its previous stream.
type PublishConflictError struct {
	Workspace string
	Target    string
	Conflicts []Conflict
}

func (e *PublishConflictError) Error() string {
	return fmt.Sprintf("cannot publish %s to %s: %s", e.Workspace, e.Target, describe(e.Conflicts))
}

func (e *PublishConflictError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodePublishConflict, e.Error(), map[string]string{
		"workspace": e.Workspace,
		"target":    e.Target,
		"conflicts": fmt.Sprint(len(e.Conflicts)),
	})
}

func inUse(streamID string, workspaces []string) error {
	return apperrors.WithMetadata(apperrors.CodeContentStreamInUse,
		fmt.Sprintf("content stream %q is used by %s", streamID, strings.Join(workspaces, ", ")),
		map[string]string{"content_stream_id": streamID})
}

func invalidName(kind, name string) error {
	code := apperrors.CodeWorkspaceNameEmpty
	if kind == "content stream id" {
		code = apperrors.CodeContentStreamIDEmpty
	}
	if name == "" {
		return apperrors.New(code, kind+" is required")
	}
	return apperrors.WithMetadata(code, fmt.Sprintf("%s %q must not contain %q", kind, name, ":"), map[string]string{"name": name})
}
