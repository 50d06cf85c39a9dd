package dimension

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PointSet is an immutable set of points. Iteration order is the lexical
// order of point hashes so that output is reproducible.
type PointSet struct {
	points map[string]Point
}

// NewPointSet builds a set, dropping duplicates.
func NewPointSet(points ...Point) PointSet {
	set := PointSet{points: make(map[string]Point, len(points))}
	for _, point := range points {
		set.points[point.Hash()] = point
	}
	return set
}

// Len returns the number of points.
func (s PointSet) Len() int {
	return len(s.points)
}

// IsEmpty reports whether the set has no points.
func (s PointSet) IsEmpty() bool {
	return len(s.points) == 0
}

// Contains reports membership.
func (s PointSet) Contains(point Point) bool {
	_, ok := s.points[point.Hash()]
	return ok
}

// Points returns the members in deterministic order.
func (s PointSet) Points() []Point {
	hashes := make([]string, 0, len(s.points))
	for hash := range s.points {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	points := make([]Point, 0, len(hashes))
	for _, hash := range hashes {
		points = append(points, s.points[hash])
	}
	return points
}

// Add returns a new set including the given points.
func (s PointSet) Add(points ...Point) PointSet {
	return NewPointSet(append(s.Points(), points...)...)
}

// Union returns the points in either set.
func (s PointSet) Union(other PointSet) PointSet {
	return NewPointSet(append(s.Points(), other.Points()...)...)
}

// Intersect returns the points in both sets.
func (s PointSet) Intersect(other PointSet) PointSet {
	var points []Point
	for _, point := range s.Points() {
		if other.Contains(point) {
			points = append(points, point)
		}
	}
	return NewPointSet(points...)
}

// Difference returns the points of s not in other.
func (s PointSet) Difference(other PointSet) PointSet {
	var points []Point
	for _, point := range s.Points() {
		if !other.Contains(point) {
			points = append(points, point)
		}
	}
	return NewPointSet(points...)
}

// Equal reports whether both sets hold the same points.
func (s PointSet) Equal(other PointSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for hash := range s.points {
		if _, ok := other.points[hash]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a JSON array in deterministic order.
func (s PointSet) MarshalJSON() ([]byte, error) {
	points := s.Points()
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(points)
}

// UnmarshalJSON decodes a JSON array of points.
func (s *PointSet) UnmarshalJSON(data []byte) error {
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("decode dimension space point set: %w", err)
	}
	*s = NewPointSet(points...)
	return nil
}

// OriginSet is an immutable set of origins.
type OriginSet struct {
	points PointSet
}

// NewOriginSet builds a set of origins, dropping duplicates.
func NewOriginSet(origins ...Origin) OriginSet {
	points := make([]Point, 0, len(origins))
	for _, origin := range origins {
		points = append(points, origin.Point())
	}
	return OriginSet{points: NewPointSet(points...)}
}

// Len returns the number of origins.
func (s OriginSet) Len() int {
	return s.points.Len()
}

// IsEmpty reports whether the set has no origins.
func (s OriginSet) IsEmpty() bool {
	return s.points.IsEmpty()
}

// Contains reports membership.
func (s OriginSet) Contains(origin Origin) bool {
	return s.points.Contains(origin.Point())
}

// Origins returns the members in deterministic order.
func (s OriginSet) Origins() []Origin {
	points := s.points.Points()
	origins := make([]Origin, 0, len(points))
	for _, point := range points {
		origins = append(origins, OriginOf(point))
	}
	return origins
}

// Add returns a new set including the given origins.
func (s OriginSet) Add(origins ...Origin) OriginSet {
	return NewOriginSet(append(s.Origins(), origins...)...)
}

// Remove returns a new set without the given origins.
func (s OriginSet) Remove(origins ...Origin) OriginSet {
	return OriginSet{points: s.points.Difference(NewOriginSet(origins...).points)}
}

// Points drops the origin tag.
func (s OriginSet) Points() PointSet {
	return s.points
}

// MarshalJSON encodes the set as a JSON array in deterministic order.
func (s OriginSet) MarshalJSON() ([]byte, error) {
	return s.points.MarshalJSON()
}

// UnmarshalJSON decodes a JSON array of points.
func (s *OriginSet) UnmarshalJSON(data []byte) error {
	return s.points.UnmarshalJSON(data)
}
