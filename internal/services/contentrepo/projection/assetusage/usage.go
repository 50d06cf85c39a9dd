// Package assetusage projects which node properties reference which assets,
// per content stream and origin.
package assetusage

import (
	"context"
	"sort"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
)

// Usage is one reference from a node property to an asset.
type Usage struct {
	AssetID         string
	ContentStreamID string
	NodeAggregateID string
	Origin          dimension.Origin
	PropertyName    string
}

// Address locates one node occurrence.
type Address struct {
	ContentStreamID string
	NodeAggregateID string
	Origin          dimension.Origin
}

// IDsByProperty maps property names to the asset ids they reference. A
// property with no ids clears its usages.
type IDsByProperty map[string][]string

// Filter narrows Find. Empty fields match everything.
type Filter struct {
	AssetID         string
	ContentStreamID string
	NodeAggregateID string
}

// Matches reports whether a usage passes the filter.
func (f Filter) Matches(u Usage) bool {
	return (f.AssetID == "" || f.AssetID == u.AssetID) &&
		(f.ContentStreamID == "" || f.ContentStreamID == u.ContentStreamID) &&
		(f.NodeAggregateID == "" || f.NodeAggregateID == u.NodeAggregateID)
}

// Repository stores usages.
type Repository interface {
	// AddUsagesForNode replaces the usages of the listed properties of one
	// occurrence.
	AddUsagesForNode(ctx context.Context, addr Address, ids IDsByProperty) error
	// RemoveNode drops the usages of an aggregate at the given origins in one
	// stream. An empty set drops every origin.
	RemoveNode(ctx context.Context, contentStreamID, nodeAggregateID string, origins dimension.OriginSet) error
	// CopyDimensions copies an aggregate's usages from one origin to another.
	CopyDimensions(ctx context.Context, contentStreamID, nodeAggregateID string, source, target dimension.Origin) error
	CopyContentStream(ctx context.Context, sourceID, targetID string) error
	RemoveContentStream(ctx context.Context, contentStreamID string) error
	Find(ctx context.Context, filter Filter) ([]Usage, error)
	Reset(ctx context.Context) error
}

// Sort orders usages by stream, aggregate, origin, property and asset.
func Sort(usages []Usage) {
	sort.Slice(usages, func(i, j int) bool {
		a, b := usages[i], usages[j]
		if a.ContentStreamID != b.ContentStreamID {
			return a.ContentStreamID < b.ContentStreamID
		}
		if a.NodeAggregateID != b.NodeAggregateID {
			return a.NodeAggregateID < b.NodeAggregateID
		}
		if a.Origin.Hash() != b.Origin.Hash() {
			return a.Origin.Hash() < b.Origin.Hash()
		}
		if a.PropertyName != b.PropertyName {
			return a.PropertyName < b.PropertyName
		}
		return a.AssetID < b.AssetID
	})
}
