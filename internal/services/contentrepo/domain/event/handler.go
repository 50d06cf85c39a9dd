package event

import (
	"context"
	"fmt"
)

// Handler receives decoded events, one method per event type. Implementations
// must handle every type; a type a handler does not care about is a no-op that
// returns nil.
type Handler interface {
	NodeHandler
	ContentStreamHandler
	WorkspaceHandler
}

// NodeHandler receives node aggregate events.
type NodeHandler interface {
	WhenNodeAggregateWithNodeWasCreated(ctx context.Context, evt Event, payload NodeAggregateWithNodeWasCreated) error
	WhenNodeGeneralizationVariantWasCreated(ctx context.Context, evt Event, payload NodeGeneralizationVariantWasCreated) error
	WhenNodeSpecializationVariantWasCreated(ctx context.Context, evt Event, payload NodeSpecializationVariantWasCreated) error
	WhenNodePeerVariantWasCreated(ctx context.Context, evt Event, payload NodePeerVariantWasCreated) error
	WhenNodePropertiesWereSet(ctx context.Context, evt Event, payload NodePropertiesWereSet) error
	WhenNodeAggregateWasRemoved(ctx context.Context, evt Event, payload NodeAggregateWasRemoved) error
}

// ContentStreamHandler receives content stream lifecycle events.
type ContentStreamHandler interface {
	WhenContentStreamWasCreated(ctx context.Context, evt Event, payload ContentStreamWasCreated) error
	WhenContentStreamWasForked(ctx context.Context, evt Event, payload ContentStreamWasForked) error
	WhenContentStreamWasRemoved(ctx context.Context, evt Event, payload ContentStreamWasRemoved) error
}

// WorkspaceHandler receives workspace lifecycle events.
type WorkspaceHandler interface {
	WhenRootWorkspaceWasCreated(ctx context.Context, evt Event, payload RootWorkspaceWasCreated) error
	WhenWorkspaceWasCreated(ctx context.Context, evt Event, payload WorkspaceWasCreated) error
	WhenWorkspaceWasRebased(ctx context.Context, evt Event, payload WorkspaceWasRebased) error
	WhenWorkspaceWasPublished(ctx context.Context, evt Event, payload WorkspaceWasPublished) error
	WhenWorkspaceWasPartiallyPublished(ctx context.Context, evt Event, payload WorkspaceWasPartiallyPublished) error
	WhenWorkspaceWasDiscarded(ctx context.Context, evt Event, payload WorkspaceWasDiscarded) error
	WhenWorkspaceWasPartiallyDiscarded(ctx context.Context, evt Event, payload WorkspaceWasPartiallyDiscarded) error
}

// WorkspacePayload is implemented by workspace lifecycle payloads.
type WorkspacePayload interface {
	Payload
	Workspace() string
	dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error
}

// Dispatch routes a decoded payload to the matching Handler method.
func Dispatch(ctx context.Context, h Handler, evt Event, payload Payload) error {
	if h == nil {
		return fmt.Errorf("event handler is required")
	}
	if payload == nil {
		return fmt.Errorf("payload is required for %s", evt.Type)
	}
	return payload.dispatch(ctx, h, evt)
}

// DispatchNode routes a node payload to a NodeHandler.
func DispatchNode(ctx context.Context, h NodeHandler, evt Event, payload NodePayload) error {
	if h == nil {
		return fmt.Errorf("node handler is required")
	}
	if payload == nil {
		return fmt.Errorf("payload is required for %s", evt.Type)
	}
	return payload.dispatchNode(ctx, h, evt)
}

// DispatchWorkspace routes a workspace payload to a WorkspaceHandler.
func DispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event, payload WorkspacePayload) error {
	if h == nil {
		return fmt.Errorf("workspace handler is required")
	}
	if payload == nil {
		return fmt.Errorf("payload is required for %s", evt.Type)
	}
	return payload.dispatchWorkspace(ctx, h, evt)
}

func (p NodeAggregateWithNodeWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodeAggregateWithNodeWasCreated) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodeAggregateWithNodeWasCreated(ctx, evt, p)
}

func (p NodeGeneralizationVariantWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodeGeneralizationVariantWasCreated) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodeGeneralizationVariantWasCreated(ctx, evt, p)
}

func (p NodeSpecializationVariantWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodeSpecializationVariantWasCreated) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodeSpecializationVariantWasCreated(ctx, evt, p)
}

func (p NodePeerVariantWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodePeerVariantWasCreated) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodePeerVariantWasCreated(ctx, evt, p)
}

func (p NodePropertiesWereSet) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodePropertiesWereSet) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodePropertiesWereSet(ctx, evt, p)
}

func (p NodeAggregateWasRemoved) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchNode(ctx, h, evt)
}

func (p NodeAggregateWasRemoved) dispatchNode(ctx context.Context, h NodeHandler, evt Event) error {
	return h.WhenNodeAggregateWasRemoved(ctx, evt, p)
}

func (p ContentStreamWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return h.WhenContentStreamWasCreated(ctx, evt, p)
}

func (p ContentStreamWasForked) dispatch(ctx context.Context, h Handler, evt Event) error {
	return h.WhenContentStreamWasForked(ctx, evt, p)
}

func (p ContentStreamWasRemoved) dispatch(ctx context.Context, h Handler, evt Event) error {
	return h.WhenContentStreamWasRemoved(ctx, evt, p)
}

func (p RootWorkspaceWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p RootWorkspaceWasCreated) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenRootWorkspaceWasCreated(ctx, evt, p)
}

func (p WorkspaceWasCreated) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasCreated) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasCreated(ctx, evt, p)
}

func (p WorkspaceWasRebased) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasRebased) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasRebased(ctx, evt, p)
}

func (p WorkspaceWasPublished) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasPublished) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasPublished(ctx, evt, p)
}

func (p WorkspaceWasPartiallyPublished) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasPartiallyPublished) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasPartiallyPublished(ctx, evt, p)
}

func (p WorkspaceWasDiscarded) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasDiscarded) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasDiscarded(ctx, evt, p)
}

func (p WorkspaceWasPartiallyDiscarded) dispatch(ctx context.Context, h Handler, evt Event) error {
	return p.dispatchWorkspace(ctx, h, evt)
}

func (p WorkspaceWasPartiallyDiscarded) dispatchWorkspace(ctx context.Context, h WorkspaceHandler, evt Event) error {
	return h.WhenWorkspaceWasPartiallyDiscarded(ctx, evt, p)
}
