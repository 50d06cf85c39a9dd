// Package sibling carries per-point child ordering for node variants.
//
// When a variant is created it must be placed among its siblings in every
// point it comes to cover. Siblings records, per point, the aggregate the new
// variant should precede; a point without a recorded sibling appends at the
// end of the child list.
package sibling

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
)

// Entry positions a variant at one point. An empty SucceedingSiblingID means
// append at the end.
type Entry struct {
	Point               dimension.Point
	SucceedingSiblingID string
}

// Siblings maps points to the sibling a variant should precede.
type Siblings struct {
	entries map[string]Entry
}

// New builds siblings from explicitly recorded entries. Later entries for the
// same point replace earlier ones.
func New(entries ...Entry) Siblings {
	s := Siblings{entries: make(map[string]Entry, len(entries))}
	for _, entry := range entries {
		s.entries[entry.Point.Hash()] = entry
	}
	return s
}

// FromPointSet derives siblings for older events that recorded only the
// covered points. Every point appends at the end.
func FromPointSet(points dimension.PointSet) Siblings {
	return ForCoverage(points, "")
}

// ForCoverage places a variant before the same sibling at every covered point.
func ForCoverage(points dimension.PointSet, succeedingSiblingID string) Siblings {
	entries := make([]Entry, 0, points.Len())
	for _, point := range points.Points() {
		entries = append(entries, Entry{Point: point, SucceedingSiblingID: succeedingSiblingID})
	}
	return New(entries...)
}

// Len returns the number of points with an entry.
func (s Siblings) Len() int {
	return len(s.entries)
}

// For returns the succeeding sibling recorded for a point. ok is false when
// the point has no entry.
func (s Siblings) For(point dimension.Point) (succeedingSiblingID string, ok bool) {
	entry, ok := s.entries[point.Hash()]
	return entry.SucceedingSiblingID, ok
}

// Points returns the points that carry an entry.
func (s Siblings) Points() dimension.PointSet {
	points := make([]dimension.Point, 0, len(s.entries))
	for _, entry := range s.entries {
		points = append(points, entry.Point)
	}
	return dimension.NewPointSet(points...)
}

// Entries returns the entries in deterministic point order.
func (s Siblings) Entries() []Entry {
	points := s.Points().Points()
	entries := make([]Entry, 0, len(points))
	for _, point := range points {
		entries = append(entries, s.entries[point.Hash()])
	}
	return entries
}

// Resolve returns the mapping for exactly the given coverage. Recorded entries
// win; uncovered entries are dropped and missing points append at the end.
func (s Siblings) Resolve(cover dimension.PointSet) Siblings {
	entries := make([]Entry, 0, cover.Len())
	for _, point := range cover.Points() {
		entry, ok := s.entries[point.Hash()]
		if !ok {
			entry = Entry{Point: point}
		}
		entries = append(entries, entry)
	}
	return New(entries...)
}

type wireEntry struct {
	DimensionSpacePoint dimension.Point `json:"dimensionSpacePoint"`
	NodeAggregateID     *string         `json:"nodeAggregateId"`
}

// MarshalJSON encodes the siblings as a list ordered by point.
func (s Siblings) MarshalJSON() ([]byte, error) {
	entries := s.Entries()
	wire := make([]wireEntry, 0, len(entries))
	for _, entry := range entries {
		w := wireEntry{DimensionSpacePoint: entry.Point}
		if entry.SucceedingSiblingID != "" {
			id := entry.SucceedingSiblingID
			w.NodeAggregateID = &id
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the list form written by MarshalJSON.
func (s *Siblings) UnmarshalJSON(data []byte) error {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode interdimensional siblings: %w", err)
	}
	entries := make([]Entry, 0, len(wire))
	for _, w := range wire {
		entry := Entry{Point: w.DimensionSpacePoint}
		if w.NodeAggregateID != nil {
			entry.SucceedingSiblingID = *w.NodeAggregateID
		}
		entries = append(entries, entry)
	}
	*s = New(entries...)
	return nil
}
