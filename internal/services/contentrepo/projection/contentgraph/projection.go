// Package contentgraph projects node events into one node aggregate graph per
// content stream.
//
// The projection keeps the logical event list of every stream next to its
// graph, so a fork at any past version can be rebuilt without reading the
// journal. Retired streams keep their events until Reset: memory grows with
// the number of node events ever written, inherited ranges share backing
// arrays with their source.
package contentgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/nodeaggregate"
)

// Name is the checkpoint id of the projection.
const Name = "content_graph"

type stream struct {
	// events is the logical node event list, inherited range included.
	events []event.Event
	// graph is nil for streams that were replaced and may only be forked.
	graph *nodeaggregate.Graph
}

// Projection holds the node aggregate graph of every content stream.
type Projection struct {
	dimensions *dimension.VariationGraph

	mu      sync.RWMutex
	streams map[string]*stream
}

var _ catchup.Projection = (*Projection)(nil)

// New returns an empty projection over a variation graph.
func New(dimensions *dimension.VariationGraph) *Projection {
	return &Projection{dimensions: dimensions, streams: make(map[string]*stream)}
}

func (p *Projection) Name() string { return Name }

// CanHandle accepts every event kind: node events build graphs and lifecycle
// events create, fork and retire them.
func (p *Projection) CanHandle(event.Type) bool { return true }

// Reset drops every graph.
func (p *Projection) Reset(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = make(map[string]*stream)
	return nil
}

// Graph returns a copy of a stream's graph.
func (p *Projection) Graph(streamID string) (*nodeaggregate.Graph, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.streams[streamID]
	if !ok || s.graph == nil {
		return nil, false
	}
	return s.graph.Clone(), true
}

// Streams lists the ids of streams with a live graph.
func (p *Projection) Streams() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.streams))
	for id, s := range p.streams {
		if s.graph != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (p *Projection) applyNode(ctx context.Context, evt event.Event, payload event.NodePayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[evt.StreamID]
	if !ok || s.graph == nil {
		return fmt.Errorf("content stream %s has no graph", evt.StreamID)
	}
	if err := event.DispatchNode(ctx, s.graph, evt, payload); err != nil {
		return err
	}
	s.events = append(s.events, evt)
	return nil
}

func (p *Projection) WhenNodeAggregateWithNodeWasCreated(ctx context.Context, evt event.Event, payload event.NodeAggregateWithNodeWasCreated) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenNodeGeneralizationVariantWasCreated(ctx context.Context, evt event.Event, payload event.NodeGeneralizationVariantWasCreated) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenNodeSpecializationVariantWasCreated(ctx context.Context, evt event.Event, payload event.NodeSpecializationVariantWasCreated) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenNodePeerVariantWasCreated(ctx context.Context, evt event.Event, payload event.NodePeerVariantWasCreated) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenNodePropertiesWereSet(ctx context.Context, evt event.Event, payload event.NodePropertiesWereSet) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenNodeAggregateWasRemoved(ctx context.Context, evt event.Event, payload event.NodeAggregateWasRemoved) error {
	return p.applyNode(ctx, evt, payload)
}

func (p *Projection) WhenContentStreamWasCreated(_ context.Context, _ event.Event, payload event.ContentStreamWasCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.streams[payload.ContentStreamID]; ok {
		return fmt.Errorf("content stream %s already projected", payload.ContentStreamID)
	}
	p.streams[payload.ContentStreamID] = &stream{graph: nodeaggregate.NewGraph(p.dimensions)}
	return nil
}

func (p *Projection) WhenContentStreamWasForked(_ context.Context, _ event.Event, payload event.ContentStreamWasForked) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	source, ok := p.streams[payload.SourceContentStreamID]
	if !ok {
		return fmt.Errorf("fork source %s is not projected", payload.SourceContentStreamID)
	}
	version := payload.VersionOfSourceContentStream
	if version > uint64(len(source.events)) {
		return fmt.Errorf("fork of %s at version %d beyond projected version %d", payload.SourceContentStreamID, version, len(source.events))
	}
	inherited := source.events[:version:version]

	var graph *nodeaggregate.Graph
	if source.graph != nil && version == uint64(len(source.events)) {
		graph = source.graph.Clone()
	} else {
		graph = nodeaggregate.NewGraph(p.dimensions)
		if err := nodeaggregate.Fold(graph, inherited...); err != nil {
			return fmt.Errorf("rebuild %s at version %d: %w", payload.SourceContentStreamID, version, err)
		}
	}
	p.streams[payload.NewContentStreamID] = &stream{events: inherited, graph: graph}
	return nil
}

func (p *Projection) WhenContentStreamWasRemoved(_ context.Context, _ event.Event, payload event.ContentStreamWasRemoved) error {
	return p.retire(payload.ContentStreamID)
}

// retire drops the graph of a replaced or removed stream. Its events stay so
// forks of it at any version can still be rebuilt.
func (p *Projection) retire(streamID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.streams[streamID]; ok {
		s.graph = nil
	}
	return nil
}

func (p *Projection) WhenRootWorkspaceWasCreated(context.Context, event.Event, event.RootWorkspaceWasCreated) error {
	return nil
}

func (p *Projection) WhenWorkspaceWasCreated(context.Context, event.Event, event.WorkspaceWasCreated) error {
	return nil
}

func (p *Projection) WhenWorkspaceWasRebased(_ context.Context, _ event.Event, payload event.WorkspaceWasRebased) error {
	return p.retire(payload.PreviousContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPublished(_ context.Context, _ event.Event, payload event.WorkspaceWasPublished) error {
	return p.retire(payload.PreviousSourceContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPartiallyPublished(_ context.Context, _ event.Event, payload event.WorkspaceWasPartiallyPublished) error {
	return p.retire(payload.PreviousSourceContentStreamID)
}

func (p *Projection) WhenWorkspaceWasDiscarded(_ context.Context, _ event.Event, payload event.WorkspaceWasDiscarded) error {
	return p.retire(payload.PreviousContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPartiallyDiscarded(_ context.Context, _ event.Event, payload event.WorkspaceWasPartiallyDiscarded) error {
	return p.retire(payload.PreviousContentStreamID)
}
