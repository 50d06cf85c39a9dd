package checkpoint

import (
	"context"
	"fmt"
)

// Routed keeps the checkpoints of the listed projections in their own stores
// and every other projection's in Default.
type Routed struct {
	Default Store
	Routes  map[string]Store
}

var _ Store = Routed{}

func (r Routed) Acquire(ctx context.Context, projectionID string) (Lease, error) {
	if store, ok := r.Routes[projectionID]; ok {
		return store.Acquire(ctx, projectionID)
	}
	if r.Default == nil {
		return nil, fmt.Errorf("no checkpoint store for %s", projectionID)
	}
	return r.Default.Acquire(ctx, projectionID)
}
