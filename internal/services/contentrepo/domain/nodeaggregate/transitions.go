package nodeaggregate

import (
	"context"
	"fmt"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/sibling"
)

var _ event.NodeHandler = (*Graph)(nil)

// Check validates a node payload against the current state without applying it.
func (g *Graph) Check(payload event.NodePayload) error {
	switch p := payload.(type) {
	case event.NodeAggregateWithNodeWasCreated:
		return g.CheckCreate(p)
	case event.NodeGeneralizationVariantWasCreated:
		return g.CheckGeneralize(p)
	case event.NodeSpecializationVariantWasCreated:
		return g.CheckSpecialize(p)
	case event.NodePeerVariantWasCreated:
		return g.CheckPeer(p)
	case event.NodePropertiesWereSet:
		return g.CheckSetProperties(p)
	case event.NodeAggregateWasRemoved:
		return g.CheckRemove(p)
	default:
		return fmt.Errorf("unsupported node payload %T", payload)
	}
}

// CheckCreate verifies that an aggregate can be created.
func (g *Graph) CheckCreate(p event.NodeAggregateWithNodeWasCreated) error {
	if p.NodeAggregateID == "" {
		return ErrNodeAggregateIDRequired
	}
	if err := g.dimensions.Validate(p.OriginDimensionSpacePoint.Point()); err != nil {
		return err
	}
	if g.Has(p.NodeAggregateID) {
		return alreadyExists(p.NodeAggregateID)
	}
	if p.ParentNodeAggregateID == "" {
		return nil
	}
	if !g.Has(p.ParentNodeAggregateID) {
		return notFound(p.ParentNodeAggregateID)
	}
	return g.checkParentCovers(p.NodeAggregateID, p.ParentNodeAggregateID, p.OriginDimensionSpacePoint.Point())
}

// checkParentCovers requires the parent to be visible at point. Coverage is
// closed under specialization, so a covered origin keeps all of its fallback
// points under the parent too.
func (g *Graph) checkParentCovers(id, parentID string, point dimension.Point) error {
	if !g.CoveredPoints(parentID).Contains(point) {
		return parentNotCovering(id, parentID, point)
	}
	return nil
}

// CheckGeneralize verifies that a generalization variant can be created.
func (g *Graph) CheckGeneralize(p event.NodeGeneralizationVariantWasCreated) error {
	return g.checkVariant(p.NodeAggregateID, p.SourceOrigin, p.GeneralizationOrigin, dimension.RelationGeneralization)
}

// CheckSpecialize verifies that a specialization variant can be created.
func (g *Graph) CheckSpecialize(p event.NodeSpecializationVariantWasCreated) error {
	return g.checkVariant(p.NodeAggregateID, p.SourceOrigin, p.SpecializationOrigin, dimension.RelationSpecialization)
}

// CheckPeer verifies that a peer variant can be created.
func (g *Graph) CheckPeer(p event.NodePeerVariantWasCreated) error {
	return g.checkVariant(p.NodeAggregateID, p.SourceOrigin, p.PeerOrigin, dimension.RelationPeer)
}

// checkVariant requires target to relate to source as want: a generalization
// target is more general than the source.
func (g *Graph) checkVariant(id string, source, target dimension.Origin, want dimension.Relation) error {
	agg, err := g.lookup(id)
	if err != nil {
		return err
	}
	if err := g.dimensions.Validate(target.Point()); err != nil {
		return err
	}
	if !agg.origins.Contains(source) {
		return sourceNotFound(id, source)
	}
	if agg.origins.Contains(target) {
		return targetOccupied(id, target)
	}
	if got := g.dimensions.Relation(target.Point(), source.Point()); got != want {
		return invalidVariation(id, want, got)
	}
	if agg.parentID != "" {
		if err := g.checkParentCovers(id, agg.parentID, target.Point()); err != nil {
			return err
		}
	}
	return g.dimensions.CheckUnambiguous(agg.origins.Add(target))
}

// CheckSetProperties verifies that the origin exists.
func (g *Graph) CheckSetProperties(p event.NodePropertiesWereSet) error {
	agg, err := g.lookup(p.NodeAggregateID)
	if err != nil {
		return err
	}
	if !agg.origins.Contains(p.OriginDimensionSpacePoint) {
		return originNotFound(p.NodeAggregateID, p.OriginDimensionSpacePoint)
	}
	return nil
}

// CheckRemove verifies that every affected origin is occupied and that the
// remaining origins still resolve unambiguously.
func (g *Graph) CheckRemove(p event.NodeAggregateWasRemoved) error {
	agg, err := g.lookup(p.NodeAggregateID)
	if err != nil {
		return err
	}
	for _, origin := range p.AffectedOccupiedDimensionSpacePoints.Origins() {
		if !agg.origins.Contains(origin) {
			return originNotFound(p.NodeAggregateID, origin)
		}
	}
	for _, r := range g.removalPlan(p) {
		if err := g.dimensions.CheckUnambiguous(r.remaining); err != nil {
			return err
		}
	}
	return nil
}

// removal is the share of one aggregate in a node removal.
type removal struct {
	id        string
	remaining dimension.OriginSet
	removed   []dimension.Origin
}

// removalPlan lists the removed aggregate first, then every descendant that
// loses an origin its parent no longer covers.
func (g *Graph) removalPlan(p event.NodeAggregateWasRemoved) []removal {
	agg := g.aggregates[p.NodeAggregateID]
	removed := p.AffectedOccupiedDimensionSpacePoints.Origins()
	if len(removed) == 0 {
		removed = agg.origins.Origins()
	}
	plan := []removal{{id: p.NodeAggregateID, remaining: agg.origins.Remove(removed...), removed: removed}}
	children := g.childrenByParent()
	for i := 0; i < len(plan); i++ {
		covered := g.coveredBy(plan[i].remaining)
		for _, childID := range children[plan[i].id] {
			child := g.aggregates[childID]
			var lost []dimension.Origin
			for _, origin := range child.origins.Origins() {
				if !covered.Contains(origin.Point()) {
					lost = append(lost, origin)
				}
			}
			if len(lost) > 0 {
				plan = append(plan, removal{id: childID, remaining: child.origins.Remove(lost...), removed: lost})
			}
		}
	}
	return plan
}

func (g *Graph) childrenByParent() map[string][]string {
	children := make(map[string][]string)
	for _, id := range g.AggregateIDs() {
		if parentID := g.aggregates[id].parentID; parentID != "" {
			children[parentID] = append(children[parentID], id)
		}
	}
	return children
}

func (g *Graph) lookup(id string) (*aggregate, error) {
	if id == "" {
		return nil, ErrNodeAggregateIDRequired
	}
	agg, ok := g.aggregates[id]
	if !ok {
		return nil, notFound(id)
	}
	return agg, nil
}

// WhenNodeAggregateWithNodeWasCreated creates the aggregate with its first
// occurrence.
func (g *Graph) WhenNodeAggregateWithNodeWasCreated(_ context.Context, _ event.Event, p event.NodeAggregateWithNodeWasCreated) error {
	if err := g.CheckCreate(p); err != nil {
		return err
	}
	origins := dimension.NewOriginSet(p.OriginDimensionSpacePoint)
	g.aggregates[p.NodeAggregateID] = &aggregate{
		nodeTypeName: p.NodeTypeName,
		nodeName:     p.NodeName,
		parentID:     p.ParentNodeAggregateID,
		origins:      origins,
	}
	g.occurrences[occurrenceKey{aggregateID: p.NodeAggregateID, origin: p.OriginDimensionSpacePoint.Hash()}] = &Occurrence{
		AggregateID:  p.NodeAggregateID,
		NodeTypeName: p.NodeTypeName,
		NodeName:     p.NodeName,
		ParentID:     p.ParentNodeAggregateID,
		Origin:       p.OriginDimensionSpacePoint,
		Properties:   p.InitialPropertyValues.Merge(nil, nil),
	}
	coverage := g.dimensions.GeneralizationCoverage(p.OriginDimensionSpacePoint, origins)
	g.position(p.NodeAggregateID, p.ParentNodeAggregateID, p.SucceedingSiblings.Resolve(coverage))
	return nil
}

func (g *Graph) WhenNodeGeneralizationVariantWasCreated(_ context.Context, _ event.Event, p event.NodeGeneralizationVariantWasCreated) error {
	if err := g.CheckGeneralize(p); err != nil {
		return err
	}
	g.addVariant(p.NodeAggregateID, p.SourceOrigin, p.GeneralizationOrigin, p.VariantSucceedingSiblings)
	return nil
}

func (g *Graph) WhenNodeSpecializationVariantWasCreated(_ context.Context, _ event.Event, p event.NodeSpecializationVariantWasCreated) error {
	if err := g.CheckSpecialize(p); err != nil {
		return err
	}
	g.addVariant(p.NodeAggregateID, p.SourceOrigin, p.SpecializationOrigin, p.SpecializationSiblings)
	return nil
}

func (g *Graph) WhenNodePeerVariantWasCreated(_ context.Context, _ event.Event, p event.NodePeerVariantWasCreated) error {
	if err := g.CheckPeer(p); err != nil {
		return err
	}
	g.addVariant(p.NodeAggregateID, p.SourceOrigin, p.PeerOrigin, p.PeerSucceedingSiblings)
	return nil
}

// addVariant copies the source occurrence to target and repositions the
// aggregate at the points target now controls.
func (g *Graph) addVariant(id string, source, target dimension.Origin, siblings sibling.Siblings) {
	agg := g.aggregates[id]
	src := g.occurrences[occurrenceKey{aggregateID: id, origin: source.Hash()}]
	agg.origins = agg.origins.Add(target)
	g.occurrences[occurrenceKey{aggregateID: id, origin: target.Hash()}] = &Occurrence{
		AggregateID:  id,
		NodeTypeName: src.NodeTypeName,
		NodeName:     src.NodeName,
		ParentID:     src.ParentID,
		Origin:       target,
		Properties:   src.Properties.Merge(nil, nil),
	}
	coverage := g.dimensions.GeneralizationCoverage(target, agg.origins)
	g.position(id, agg.parentID, siblings.Resolve(coverage))
}

func (g *Graph) WhenNodePropertiesWereSet(_ context.Context, _ event.Event, p event.NodePropertiesWereSet) error {
	if err := g.CheckSetProperties(p); err != nil {
		return err
	}
	occ := g.occurrences[occurrenceKey{aggregateID: p.NodeAggregateID, origin: p.OriginDimensionSpacePoint.Hash()}]
	occ.Properties = occ.Properties.Merge(p.PropertyValues, p.PropertiesToUnset)
	return nil
}

// WhenNodeAggregateWasRemoved drops the affected origins, or the whole
// aggregate when none are listed. Descendant occurrences at origins the
// parent stops covering go with it.
func (g *Graph) WhenNodeAggregateWasRemoved(_ context.Context, _ event.Event, p event.NodeAggregateWasRemoved) error {
	if err := g.CheckRemove(p); err != nil {
		return err
	}
	for _, r := range g.removalPlan(p) {
		agg := g.aggregates[r.id]
		before := g.coveredBy(agg.origins)
		agg.origins = r.remaining
		for _, origin := range r.removed {
			delete(g.occurrences, occurrenceKey{aggregateID: r.id, origin: origin.Hash()})
		}
		g.unposition(r.id, agg.parentID, before.Difference(g.coveredBy(agg.origins)))
		if agg.origins.IsEmpty() {
			delete(g.aggregates, r.id)
		}
	}
	return nil
}
