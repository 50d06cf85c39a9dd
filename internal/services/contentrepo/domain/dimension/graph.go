package dimension

import (
	"sort"
	"strings"
)

// Relation classifies how one point relates to another under the fallback
// configuration.
type Relation int

const (
	// RelationSame means both points are equal.
	RelationSame Relation = iota
	// RelationGeneralization means the first point is strictly more general:
	// the second point falls back to it.
	RelationGeneralization
	// RelationSpecialization means the first point is strictly more specific:
	// it falls back to the second point.
	RelationSpecialization
	// RelationPeer means neither point falls back to the other.
	RelationPeer
)

func (r Relation) String() string {
	switch r {
	case RelationSame:
		return "same"
	case RelationGeneralization:
		return "generalization"
	case RelationSpecialization:
		return "specialization"
	case RelationPeer:
		return "peer"
	default:
		return "unknown"
	}
}

// VariationGraph is the fallback relation over the configured dimension space.
type VariationGraph struct {
	dimensions []string
	parents    map[string]map[string]string
	depths     map[string]map[string]int
	points     []Point
}

// NewVariationGraph builds the graph for a validated configuration.
func NewVariationGraph(cfg Config) (*VariationGraph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &VariationGraph{
		parents: make(map[string]map[string]string, len(cfg.Dimensions)),
		depths:  make(map[string]map[string]int, len(cfg.Dimensions)),
	}
	values := make(map[string][]string, len(cfg.Dimensions))
	for _, dim := range cfg.Dimensions {
		name := strings.TrimSpace(dim.Name)
		g.dimensions = append(g.dimensions, name)
		g.parents[name] = make(map[string]string)
		g.depths[name] = make(map[string]int)
		g.index(name, "", 0, dim.Values)
		for value := range g.depths[name] {
			values[name] = append(values[name], value)
		}
		sort.Strings(values[name])
	}
	sort.Strings(g.dimensions)
	g.points = g.enumerate(values)
	return g, nil
}

func (g *VariationGraph) index(dimension, parent string, depth int, nodes []ValueConfig) {
	for _, node := range nodes {
		if parent != "" {
			g.parents[dimension][node.Value] = parent
		}
		g.depths[dimension][node.Value] = depth
		g.index(dimension, node.Value, depth+1, node.Specializations)
	}
}

func (g *VariationGraph) enumerate(values map[string][]string) []Point {
	combos := []map[string]string{{}}
	for _, dim := range g.dimensions {
		var next []map[string]string
		for _, combo := range combos {
			for _, value := range values[dim] {
				extended := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}
				extended[dim] = value
				next = append(next, extended)
			}
		}
		combos = next
	}
	points := make([]Point, 0, len(combos))
	for _, combo := range combos {
		points = append(points, PointFrom(combo))
	}
	return NewPointSet(points...).Points()
}

// Dimensions returns the configured dimension names in lexical order.
func (g *VariationGraph) Dimensions() []string {
	return append([]string(nil), g.dimensions...)
}

// Points returns every point of the configured space in deterministic order.
func (g *VariationGraph) Points() []Point {
	return append([]Point(nil), g.points...)
}

// NewPoint validates coordinates against the configuration.
func (g *VariationGraph) NewPoint(coordinates map[string]string) (Point, error) {
	point := PointFrom(coordinates)
	if err := g.Validate(point); err != nil {
		return Point{}, err
	}
	return point, nil
}

// Validate checks that a point names only configured dimensions and values and
// sets every dimension.
func (g *VariationGraph) Validate(point Point) error {
	for _, name := range point.Dimensions() {
		depths, ok := g.depths[name]
		if !ok {
			return unknownDimension(name)
		}
		value, _ := point.Value(name)
		if _, ok := depths[value]; !ok {
			return unknownValue(name, value)
		}
	}
	for _, name := range g.dimensions {
		if _, ok := point.Value(name); !ok {
			return incompletePoint(name)
		}
	}
	return nil
}

// fallsBackTo reports whether value falls back to ancestor, or equals it.
func (g *VariationGraph) fallsBackTo(dimension, value, ancestor string) bool {
	parents := g.parents[dimension]
	for {
		if value == ancestor {
			return true
		}
		parent, ok := parents[value]
		if !ok {
			return false
		}
		value = parent
	}
}

func (g *VariationGraph) generalizesOrEquals(general, specific Point) bool {
	for _, dim := range g.dimensions {
		a, okA := general.Value(dim)
		b, okB := specific.Value(dim)
		if !okA || !okB || !g.fallsBackTo(dim, b, a) {
			return false
		}
	}
	return true
}

// Relation classifies a relative to b. RelationGeneralization means a is
// strictly more general than b.
func (g *VariationGraph) Relation(a, b Point) Relation {
	if a.Equal(b) {
		return RelationSame
	}
	if g.generalizesOrEquals(a, b) {
		return RelationGeneralization
	}
	if g.generalizesOrEquals(b, a) {
		return RelationSpecialization
	}
	return RelationPeer
}

// IsGeneralization reports whether a is strictly more general than b.
func (g *VariationGraph) IsGeneralization(a, b Point) bool {
	return g.Relation(a, b) == RelationGeneralization
}

// IsSpecialization reports whether a is strictly more specific than b.
func (g *VariationGraph) IsSpecialization(a, b Point) bool {
	return g.Relation(a, b) == RelationSpecialization
}

// IsPeer reports whether neither point falls back to the other.
func (g *VariationGraph) IsPeer(a, b Point) bool {
	return g.Relation(a, b) == RelationPeer
}

// SpecializationSet returns the points that fall back to p, optionally
// including p itself.
func (g *VariationGraph) SpecializationSet(p Point, includeSelf bool) PointSet {
	var points []Point
	for _, candidate := range g.points {
		switch g.Relation(p, candidate) {
		case RelationGeneralization:
			points = append(points, candidate)
		case RelationSame:
			if includeSelf {
				points = append(points, candidate)
			}
		}
	}
	return NewPointSet(points...)
}

// Generalizations returns the points p falls back to, optionally including p.
func (g *VariationGraph) Generalizations(p Point, includeSelf bool) PointSet {
	var points []Point
	for _, candidate := range g.points {
		switch g.Relation(candidate, p) {
		case RelationGeneralization:
			points = append(points, candidate)
		case RelationSame:
			if includeSelf {
				points = append(points, candidate)
			}
		}
	}
	return NewPointSet(points...)
}

// MostGeneral returns the root-most ancestor of p. A point without any
// configured fallback is its own most general ancestor.
func (g *VariationGraph) MostGeneral(p Point) Point {
	coordinates := p.Coordinates()
	for _, dim := range g.dimensions {
		value, ok := coordinates[dim]
		if !ok {
			continue
		}
		for {
			parent, ok := g.parents[dim][value]
			if !ok {
				break
			}
			value = parent
		}
		coordinates[dim] = value
	}
	return PointFrom(coordinates)
}

// ControllingOrigin returns the most specific occupied origin that p equals
// or falls back to. Two incomparable candidates make the coverage ambiguous.
func (g *VariationGraph) ControllingOrigin(p Point, occupied OriginSet) (Origin, error) {
	var candidates []Origin
	for _, origin := range occupied.Origins() {
		if g.generalizesOrEquals(origin.Point(), p) {
			candidates = append(candidates, origin)
		}
	}
	if len(candidates) == 0 {
		return Origin{}, pointNotCovered(p)
	}

	var maximal []Origin
	for _, candidate := range candidates {
		dominated := false
		for _, other := range candidates {
			if g.IsSpecialization(other.Point(), candidate.Point()) {
				dominated = true
				break
			}
		}
		if !dominated {
			maximal = append(maximal, candidate)
		}
	}
	if len(maximal) != 1 {
		return Origin{}, ambiguousCoverage(p, maximal)
	}
	return maximal[0], nil
}

// GeneralizationCoverage returns the points origin controls once it joins the
// occupied origins. Ambiguous points are not part of any coverage.
func (g *VariationGraph) GeneralizationCoverage(origin Origin, occupied OriginSet) PointSet {
	all := occupied.Add(origin)
	var covered []Point
	for _, point := range g.SpecializationSet(origin.Point(), true).Points() {
		controlling, err := g.ControllingOrigin(point, all)
		if err == nil && controlling.Equal(origin) {
			covered = append(covered, point)
		}
	}
	return NewPointSet(covered...)
}

// CheckUnambiguous verifies that every point of the space resolves to at most
// one controlling origin.
func (g *VariationGraph) CheckUnambiguous(occupied OriginSet) error {
	for _, point := range g.points {
		if _, err := g.ControllingOrigin(point, occupied); err != nil {
			if isAmbiguous(err) {
				return err
			}
		}
	}
	return nil
}
