package nodeaggregate

import (
	"context"
	"fmt"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

var registry = event.NewRegistry()

// Fold applies stored events in order. Events that do not belong to the node
// family are ignored, so a logical stream can be folded as read.
func Fold(g *Graph, events ...event.Event) error {
	ctx := context.Background()
	for _, evt := range events {
		if def, ok := registry.Definition(evt.Type); ok && def.Owner != event.OwnerNode {
			continue
		}
		payload, err := registry.Decode(evt)
		if err != nil {
			return fmt.Errorf("decode event %d: %w", evt.Version, err)
		}
		if err := Apply(ctx, g, evt, payload); err != nil {
			return fmt.Errorf("fold event %d (%s): %w", evt.Version, evt.Type, err)
		}
	}
	return nil
}

// Apply folds one decoded payload. Payloads outside the node family are a
// no-op.
func Apply(ctx context.Context, g *Graph, evt event.Event, payload event.Payload) error {
	node, ok := payload.(event.NodePayload)
	if !ok {
		return nil
	}
	return event.DispatchNode(ctx, g, evt, node)
}
