package assetusage

import (
	"context"
	"fmt"
	"sort"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// Name is the checkpoint id of the projection.
const Name = "asset_usage"

var handled = map[event.Type]bool{
	event.TypeNodeAggregateWithNodeWasCreated: true,
	event.TypeNodePropertiesWereSet:           true,
	event.TypeNodeAggregateWasRemoved:         true,
	event.TypeNodePeerVariantWasCreated:       true,
	event.TypeContentStreamWasForked:          true,
	event.TypeWorkspaceWasDiscarded:           true,
	event.TypeWorkspaceWasPartiallyDiscarded:  true,
	event.TypeWorkspaceWasPartiallyPublished:  true,
	event.TypeWorkspaceWasPublished:           true,
	event.TypeWorkspaceWasRebased:             true,
	event.TypeContentStreamWasRemoved:         true,
}

// Projection keeps a Repository in step with the journal.
type Projection struct {
	Repository Repository
	Extractor  Extractor
}

var _ catchup.Projection = (*Projection)(nil)

// New returns a projection using the default extractor.
func New(repo Repository) *Projection {
	return &Projection{Repository: repo, Extractor: PropertyExtractor{}}
}

func (p *Projection) Name() string { return Name }

func (p *Projection) CanHandle(eventType event.Type) bool { return handled[eventType] }

// Reset drops every usage.
func (p *Projection) Reset(ctx context.Context) error {
	return p.Repository.Reset(ctx)
}

func (p *Projection) idsByProperty(aggregateID string, values event.PropertyValues, unset []string) (IDsByProperty, error) {
	ids := make(IDsByProperty, len(values)+len(unset))
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		found, err := p.Extractor.Extract(values[name])
		if err != nil {
			return nil, fmt.Errorf("extract asset ids of %s.%s: %w", aggregateID, name, err)
		}
		ids[name] = found
	}
	for _, name := range unset {
		ids[name] = nil
	}
	return ids, nil
}

func (p *Projection) WhenNodeAggregateWithNodeWasCreated(ctx context.Context, evt event.Event, payload event.NodeAggregateWithNodeWasCreated) error {
	ids, err := p.idsByProperty(payload.NodeAggregateID, payload.InitialPropertyValues, nil)
	if err != nil {
		return err
	}
	return p.Repository.AddUsagesForNode(ctx, Address{
		ContentStreamID: evt.StreamID,
		NodeAggregateID: payload.NodeAggregateID,
		Origin:          payload.OriginDimensionSpacePoint,
	}, ids)
}

func (p *Projection) WhenNodePropertiesWereSet(ctx context.Context, evt event.Event, payload event.NodePropertiesWereSet) error {
	ids, err := p.idsByProperty(payload.NodeAggregateID, payload.PropertyValues, payload.PropertiesToUnset)
	if err != nil {
		return err
	}
	return p.Repository.AddUsagesForNode(ctx, Address{
		ContentStreamID: evt.StreamID,
		NodeAggregateID: payload.NodeAggregateID,
		Origin:          payload.OriginDimensionSpacePoint,
	}, ids)
}

func (p *Projection) WhenNodeAggregateWasRemoved(ctx context.Context, evt event.Event, payload event.NodeAggregateWasRemoved) error {
	return p.Repository.RemoveNode(ctx, evt.StreamID, payload.NodeAggregateID, payload.AffectedOccupiedDimensionSpacePoints)
}

func (p *Projection) WhenNodePeerVariantWasCreated(ctx context.Context, evt event.Event, payload event.NodePeerVariantWasCreated) error {
	return p.Repository.CopyDimensions(ctx, evt.StreamID, payload.NodeAggregateID, payload.SourceOrigin, payload.PeerOrigin)
}

func (p *Projection) WhenNodeGeneralizationVariantWasCreated(context.Context, event.Event, event.NodeGeneralizationVariantWasCreated) error {
	return nil
}

func (p *Projection) WhenNodeSpecializationVariantWasCreated(context.Context, event.Event, event.NodeSpecializationVariantWasCreated) error {
	return nil
}

func (p *Projection) WhenContentStreamWasCreated(context.Context, event.Event, event.ContentStreamWasCreated) error {
	return nil
}

func (p *Projection) WhenContentStreamWasForked(ctx context.Context, _ event.Event, payload event.ContentStreamWasForked) error {
	return p.Repository.CopyContentStream(ctx, payload.SourceContentStreamID, payload.NewContentStreamID)
}

func (p *Projection) WhenContentStreamWasRemoved(ctx context.Context, _ event.Event, payload event.ContentStreamWasRemoved) error {
	return p.Repository.RemoveContentStream(ctx, payload.ContentStreamID)
}

func (p *Projection) WhenRootWorkspaceWasCreated(context.Context, event.Event, event.RootWorkspaceWasCreated) error {
	return nil
}

func (p *Projection) WhenWorkspaceWasCreated(context.Context, event.Event, event.WorkspaceWasCreated) error {
	return nil
}

func (p *Projection) WhenWorkspaceWasRebased(ctx context.Context, _ event.Event, payload event.WorkspaceWasRebased) error {
	return p.Repository.RemoveContentStream(ctx, payload.PreviousContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPublished(ctx context.Context, _ event.Event, payload event.WorkspaceWasPublished) error {
	return p.Repository.RemoveContentStream(ctx, payload.PreviousSourceContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPartiallyPublished(ctx context.Context, _ event.Event, payload event.WorkspaceWasPartiallyPublished) error {
	return p.Repository.RemoveContentStream(ctx, payload.PreviousSourceContentStreamID)
}

func (p *Projection) WhenWorkspaceWasDiscarded(ctx context.Context, _ event.Event, payload event.WorkspaceWasDiscarded) error {
	return p.Repository.RemoveContentStream(ctx, payload.PreviousContentStreamID)
}

func (p *Projection) WhenWorkspaceWasPartiallyDiscarded(ctx context.Context, _ event.Event, payload event.WorkspaceWasPartiallyDiscarded) error {
	return p.Repository.RemoveContentStream(ctx, payload.PreviousContentStreamID)
}

// Usages lists the usages matching a filter.
func (p *Projection) Usages(ctx context.Context, filter Filter) ([]Usage, error) {
	return p.Repository.Find(ctx, filter)
}
