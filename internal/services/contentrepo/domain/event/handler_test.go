package event

import "context"

// nopHandler ignores every event.
type nopHandler struct{}

func (nopHandler) WhenNodeAggregateWithNodeWasCreated(context.Context, Event, NodeAggregateWithNodeWasCreated) error         { return nil }
func (nopHandler) WhenNodeGeneralizationVariantWasCreated(context.Context, Event, NodeGeneralizationVariantWasCreated) error { return nil }
func (nopHandler) WhenNodeSpecializationVariantWasCreated(context.Context, Event, NodeSpecializationVariantWasCreated) error { return nil }
func (nopHandler) WhenNodePeerVariantWasCreated(context.Context, Event, NodePeerVariantWasCreated) error                     { return nil }
func (nopHandler) WhenNodePropertiesWereSet(context.Context, Event, NodePropertiesWereSet) error                             { return nil }
func (nopHandler) WhenNodeAggregateWasRemoved(context.Context, Event, NodeAggregateWasRemoved) error                         { return nil }
func (nopHandler) WhenContentStreamWasCreated(context.Context, Event, ContentStreamWasCreated) error                         { return nil }
func (nopHandler) WhenContentStreamWasForked(context.Context, Event, ContentStreamWasForked) error                           { return nil }
func (nopHandler) WhenContentStreamWasRemoved(context.Context, Event, ContentStreamWasRemoved) error                         { return nil }
func (nopHandler) WhenRootWorkspaceWasCreated(context.Context, Event, RootWorkspaceWasCreated) error                         { return nil }
func (nopHandler) WhenWorkspaceWasCreated(context.Context, Event, WorkspaceWasCreated) error                                 { return nil }
func (nopHandler) WhenWorkspaceWasRebased(context.Context, Event, WorkspaceWasRebased) error                                 { return nil }
func (nopHandler) WhenWorkspaceWasPublished(context.Context, Event, WorkspaceWasPublished) error                             { return nil }
func (nopHandler) WhenWorkspaceWasPartiallyPublished(context.Context, Event, WorkspaceWasPartiallyPublished) error           { return nil }
func (nopHandler) WhenWorkspaceWasDiscarded(context.Context, Event, WorkspaceWasDiscarded) error                             { return nil }
func (nopHandler) WhenWorkspaceWasPartiallyDiscarded(context.Context, Event, WorkspaceWasPartiallyDiscarded) error           { return nil }
