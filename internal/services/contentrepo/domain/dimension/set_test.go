package dimension

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPointEqualityIsStructural(t *testing.T) {
	a := PointFrom(map[string]string{"language": "en", "region": "eu"})
	b := PointFrom(map[string]string{"region": "eu", "language": "en"})
	if !a.Equal(b) {
		t.Fatalf("expected %s == %s", a, b)
	}
	if got, want := a.Hash(), `{"language":"en","region":"eu"}`; got != want {
		t.Fatalf("Hash() = %s, want %s", got, want)
	}
	if a.Equal(a.With("region", "world")) {
		t.Fatal("expected With to produce a different point")
	}
}

func TestPointIsImmutable(t *testing.T) {
	coords := map[string]string{"language": "en"}
	p := PointFrom(coords)
	coords["language"] = "de"
	out := p.Coordinates()
	out["language"] = "fr"

	if v, _ := p.Value("language"); v != "en" {
		t.Fatalf("language = %s, want en", v)
	}
}

func TestPointSetIterationIsDeterministic(t *testing.T) {
	de := PointFrom(map[string]string{"language": "de"})
	en := PointFrom(map[string]string{"language": "en"})
	root := PointFrom(map[string]string{"language": "root"})

	first := NewPointSet(root, en, de, en)
	second := NewPointSet(de, root, en)

	hashes := func(s PointSet) []string {
		var out []string
		for _, p := range s.Points() {
			out = append(out, p.Hash())
		}
		return out
	}
	if diff := cmp.Diff(hashes(first), hashes(second)); diff != "" {
		t.Fatalf("iteration order differs (-first +second):\n%s", diff)
	}
	if first.Len() != 3 {
		t.Fatalf("len = %d, want 3", first.Len())
	}

	data, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `[{"language":"de"},{"language":"en"},{"language":"root"}]`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestPointSetAlgebra(t *testing.T) {
	a := PointFrom(map[string]string{"l": "a"})
	b := PointFrom(map[string]string{"l": "b"})
	c := PointFrom(map[string]string{"l": "c"})

	left := NewPointSet(a, b)
	right := NewPointSet(b, c)

	if !left.Union(right).Equal(NewPointSet(a, b, c)) {
		t.Fatal("union mismatch")
	}
	if !left.Intersect(right).Equal(NewPointSet(b)) {
		t.Fatal("intersect mismatch")
	}
	if !left.Difference(right).Equal(NewPointSet(a)) {
		t.Fatal("difference mismatch")
	}
	if !NewPointSet().IsEmpty() {
		t.Fatal("expected empty set")
	}
}

func TestOriginSetAddRemove(t *testing.T) {
	en := OriginOf(PointFrom(map[string]string{"l": "en"}))
	de := OriginOf(PointFrom(map[string]string{"l": "de"}))

	set := NewOriginSet(en).Add(de, en)
	if set.Len() != 2 {
		t.Fatalf("len = %d, want 2", set.Len())
	}
	set = set.Remove(en)
	if set.Contains(en) || !set.Contains(de) {
		t.Fatalf("origins = %v, want [de]", set.Origins())
	}

	var decoded OriginSet
	if err := json.Unmarshal([]byte(`[{"l":"de"}]`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Contains(de) {
		t.Fatal("expected decoded set to contain de")
	}
}
