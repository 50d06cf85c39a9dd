// Package eventtest provides handler helpers for tests.
package eventtest

import (
	"context"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// NopHandler ignores every event. Embed it in test handlers to override only
// the methods a test cares about.
type NopHandler struct{}

var _ event.Handler = NopHandler{}

func (NopHandler) WhenNodeAggregateWithNodeWasCreated(context.Context, event.Event, event.NodeAggregateWithNodeWasCreated) error         { return nil }
func (NopHandler) WhenNodeGeneralizationVariantWasCreated(context.Context, event.Event, event.NodeGeneralizationVariantWasCreated) error { return nil }
func (NopHandler) WhenNodeSpecializationVariantWasCreated(context.Context, event.Event, event.NodeSpecializationVariantWasCreated) error { return nil }
func (NopHandler) WhenNodePeerVariantWasCreated(context.Context, event.Event, event.NodePeerVariantWasCreated) error                     { return nil }
func (NopHandler) WhenNodePropertiesWereSet(context.Context, event.Event, event.NodePropertiesWereSet) error                             { return nil }
func (NopHandler) WhenNodeAggregateWasRemoved(context.Context, event.Event, event.NodeAggregateWasRemoved) error                         { return nil }
func (NopHandler) WhenContentStreamWasCreated(context.Context, event.Event, event.ContentStreamWasCreated) error                         { return nil }
func (NopHandler) WhenContentStreamWasForked(context.Context, event.Event, event.ContentStreamWasForked) error                           { return nil }
func (NopHandler) WhenContentStreamWasRemoved(context.Context, event.Event, event.ContentStreamWasRemoved) error                         { return nil }
func (NopHandler) WhenRootWorkspaceWasCreated(context.Context, event.Event, event.RootWorkspaceWasCreated) error                         { return nil }
func (NopHandler) WhenWorkspaceWasCreated(context.Context, event.Event, event.WorkspaceWasCreated) error                                 { return nil }
func (NopHandler) WhenWorkspaceWasRebased(context.Context, event.Event, event.WorkspaceWasRebased) error                                 { return nil }
func (NopHandler) WhenWorkspaceWasPublished(context.Context, event.Event, event.WorkspaceWasPublished) error                             { return nil }
func (NopHandler) WhenWorkspaceWasPartiallyPublished(context.Context, event.Event, event.WorkspaceWasPartiallyPublished) error           { return nil }
func (NopHandler) WhenWorkspaceWasDiscarded(context.Context, event.Event, event.WorkspaceWasDiscarded) error                             { return nil }
func (NopHandler) WhenWorkspaceWasPartiallyDiscarded(context.Context, event.Event, event.WorkspaceWasPartiallyDiscarded) error           { return nil }
