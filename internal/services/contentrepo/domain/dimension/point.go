package dimension

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Point is an immutable coordinate in the dimension space. Equality is
// structural and exposed through Equal and Hash.
type Point struct {
	coordinates map[string]string
	hash        string
}

// PointFrom builds a point from raw coordinates without checking them against
// a configuration. Use VariationGraph.NewPoint to validate user input.
func PointFrom(coordinates map[string]string) Point {
	copied := make(map[string]string, len(coordinates))
	for name, value := range coordinates {
		copied[name] = value
	}
	return Point{coordinates: copied, hash: canonicalHash(copied)}
}

// EmptyPoint is the single point of a space without dimensions.
func EmptyPoint() Point {
	return PointFrom(nil)
}

// Value returns the coordinate for a dimension.
func (p Point) Value(dimension string) (string, bool) {
	value, ok := p.coordinates[dimension]
	return value, ok
}

// Coordinates returns a copy of the point's coordinates.
func (p Point) Coordinates() map[string]string {
	copied := make(map[string]string, len(p.coordinates))
	for name, value := range p.coordinates {
		copied[name] = value
	}
	return copied
}

// Dimensions returns the dimension names of the point in lexical order.
func (p Point) Dimensions() []string {
	names := make([]string, 0, len(p.coordinates))
	for name := range p.coordinates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the point with one coordinate replaced.
func (p Point) With(dimension, value string) Point {
	coordinates := p.Coordinates()
	coordinates[dimension] = value
	return PointFrom(coordinates)
}

// Hash is the canonical encoding of the point, stable across processes.
func (p Point) Hash() string {
	if p.hash == "" {
		return canonicalHash(p.coordinates)
	}
	return p.hash
}

// Equal reports structural equality.
func (p Point) Equal(other Point) bool {
	return p.Hash() == other.Hash()
}

func (p Point) String() string {
	return p.Hash()
}

// MarshalJSON encodes the point as a JSON object with sorted keys.
func (p Point) MarshalJSON() ([]byte, error) {
	if p.coordinates == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.coordinates)
}

// UnmarshalJSON decodes a JSON object of dimension name to value.
func (p *Point) UnmarshalJSON(data []byte) error {
	var coordinates map[string]string
	if err := json.Unmarshal(data, &coordinates); err != nil {
		return fmt.Errorf("decode dimension space point: %w", err)
	}
	*p = PointFrom(coordinates)
	return nil
}

func canonicalHash(coordinates map[string]string) string {
	if len(coordinates) == 0 {
		return "{}"
	}
	// encoding/json sorts map keys, which makes the encoding canonical.
	data, err := json.Marshal(coordinates)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Origin is a point tagged as the authoritative origin of one occurrence of a
// node aggregate.
type Origin struct {
	point Point
}

// OriginOf tags a point as an origin.
func OriginOf(point Point) Origin {
	return Origin{point: point}
}

// Point returns the untagged point.
func (o Origin) Point() Point {
	return o.point
}

// Hash is the canonical encoding of the origin's point.
func (o Origin) Hash() string {
	return o.point.Hash()
}

// Equal reports structural equality.
func (o Origin) Equal(other Origin) bool {
	return o.point.Equal(other.point)
}

func (o Origin) String() string {
	return o.point.String()
}

// MarshalJSON encodes the origin like its point.
func (o Origin) MarshalJSON() ([]byte, error) {
	return o.point.MarshalJSON()
}

// UnmarshalJSON decodes the origin like its point.
func (o *Origin) UnmarshalJSON(data []byte) error {
	var point Point
	if err := point.UnmarshalJSON(data); err != nil {
		return err
	}
	o.point = point
	return nil
}
