// Package nodeaggregate folds node events of one content stream into an arena
// of node occurrences and guards the variation preconditions.
//
// An aggregate occupies one or more origins. Every point the aggregate covers
// is controlled by exactly one of those origins: the most specific origin the
// point falls back to. Coverage is derived from the origins on demand and is
// never stored.
package nodeaggregate

import (
	"sort"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/sibling"
)

// Occurrence is the node of an aggregate at one origin.
type Occurrence struct {
	AggregateID  string
	NodeTypeName string
	NodeName     string
	ParentID     string
	Origin       dimension.Origin
	Properties   event.PropertyValues
}

type occurrenceKey struct {
	aggregateID string
	origin      string
}

type childKey struct {
	parentID string
	point    string
}

type aggregate struct {
	nodeTypeName string
	nodeName     string
	parentID     string
	origins      dimension.OriginSet
}

// Graph is the node state of one content stream.
type Graph struct {
	dimensions  *dimension.VariationGraph
	aggregates  map[string]*aggregate
	occurrences map[occurrenceKey]*Occurrence
	children    map[childKey][]string
}

// NewGraph returns an empty graph over a dimension space.
func NewGraph(dimensions *dimension.VariationGraph) *Graph {
	return &Graph{
		dimensions:  dimensions,
		aggregates:  make(map[string]*aggregate),
		occurrences: make(map[occurrenceKey]*Occurrence),
		children:    make(map[childKey][]string),
	}
}

// Dimensions returns the variation graph the node graph validates against.
func (g *Graph) Dimensions() *dimension.VariationGraph {
	return g.dimensions
}

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	clone := NewGraph(g.dimensions)
	for id, agg := range g.aggregates {
		copied := *agg
		clone.aggregates[id] = &copied
	}
	for key, occ := range g.occurrences {
		copied := *occ
		copied.Properties = occ.Properties.Merge(nil, nil)
		clone.occurrences[key] = &copied
	}
	for key, ids := range g.children {
		clone.children[key] = append([]string(nil), ids...)
	}
	return clone
}

// Has reports whether the aggregate exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.aggregates[id]
	return ok
}

// AggregateIDs returns every aggregate id in lexical order.
func (g *Graph) AggregateIDs() []string {
	ids := make([]string, 0, len(g.aggregates))
	for id := range g.aggregates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Origins returns the origins the aggregate occupies.
func (g *Graph) Origins(id string) dimension.OriginSet {
	agg, ok := g.aggregates[id]
	if !ok {
		return dimension.NewOriginSet()
	}
	return agg.origins
}

// Occurrence returns the node of an aggregate at an origin.
func (g *Graph) Occurrence(id string, origin dimension.Origin) (Occurrence, bool) {
	occ, ok := g.occurrences[occurrenceKey{aggregateID: id, origin: origin.Hash()}]
	if !ok {
		return Occurrence{}, false
	}
	out := *occ
	out.Properties = occ.Properties.Merge(nil, nil)
	return out, true
}

// CoverageOf returns the points controlled by one origin of an aggregate.
func (g *Graph) CoverageOf(id string, origin dimension.Origin) dimension.PointSet {
	agg, ok := g.aggregates[id]
	if !ok || !agg.origins.Contains(origin) {
		return dimension.NewPointSet()
	}
	return g.dimensions.GeneralizationCoverage(origin, agg.origins)
}

// CoveredPoints returns every point the aggregate is visible in.
func (g *Graph) CoveredPoints(id string) dimension.PointSet {
	agg, ok := g.aggregates[id]
	if !ok {
		return dimension.NewPointSet()
	}
	return g.coveredBy(agg.origins)
}

func (g *Graph) coveredBy(origins dimension.OriginSet) dimension.PointSet {
	var covered []dimension.Point
	for _, origin := range origins.Origins() {
		covered = append(covered, g.dimensions.GeneralizationCoverage(origin, origins).Points()...)
	}
	return dimension.NewPointSet(covered...)
}

// ControllingOrigin returns the origin of the aggregate that controls a point.
func (g *Graph) ControllingOrigin(id string, point dimension.Point) (dimension.Origin, error) {
	agg, ok := g.aggregates[id]
	if !ok {
		return dimension.Origin{}, notFound(id)
	}
	return g.dimensions.ControllingOrigin(point, agg.origins)
}

// Children returns the ordered child aggregates of a parent at a point. The
// empty parent id lists root aggregates.
func (g *Graph) Children(parentID string, point dimension.Point) []string {
	return append([]string(nil), g.children[childKey{parentID: parentID, point: point.Hash()}]...)
}

// Verify checks the structural invariants: every origin has an occurrence and
// no point of any aggregate is ambiguous.
func (g *Graph) Verify() error {
	for _, id := range g.AggregateIDs() {
		agg := g.aggregates[id]
		for _, origin := range agg.origins.Origins() {
			if _, ok := g.occurrences[occurrenceKey{aggregateID: id, origin: origin.Hash()}]; !ok {
				return originNotFound(id, origin)
			}
		}
		if err := g.dimensions.CheckUnambiguous(agg.origins); err != nil {
			return err
		}
	}
	return nil
}

// position places an aggregate among its siblings at every point of the
// mapping, moving it if it is already listed there.
func (g *Graph) position(id, parentID string, siblings sibling.Siblings) {
	for _, entry := range siblings.Entries() {
		key := childKey{parentID: parentID, point: entry.Point.Hash()}
		ids := without(g.children[key], id)
		at := len(ids)
		if entry.SucceedingSiblingID != "" {
			for i, child := range ids {
				if child == entry.SucceedingSiblingID {
					at = i
					break
				}
			}
		}
		ids = append(ids, "")
		copy(ids[at+1:], ids[at:])
		ids[at] = id
		g.children[key] = ids
	}
}

func (g *Graph) unposition(id, parentID string, points dimension.PointSet) {
	for _, point := range points.Points() {
		key := childKey{parentID: parentID, point: point.Hash()}
		ids := without(g.children[key], id)
		if len(ids) == 0 {
			delete(g.children, key)
			continue
		}
		g.children[key] = ids
	}
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
