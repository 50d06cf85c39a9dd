package sibling

import (
	"encoding/json"
	"testing"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
)

var (
	en   = dimension.PointFrom(map[string]string{"lang": "en"})
	de   = dimension.PointFrom(map[string]string{"lang": "de"})
	root = dimension.PointFrom(map[string]string{"lang": "root"})
)

func TestExplicitEntriesWin(t *testing.T) {
	explicit := New(Entry{Point: en, SucceedingSiblingID: "node-b"})

	resolved := explicit.Resolve(dimension.NewPointSet(en, de))
	if got, ok := resolved.For(en); !ok || got != "node-b" {
		t.Fatalf("en sibling = %q, %v, want node-b", got, ok)
	}
	if got, ok := resolved.For(de); !ok || got != "" {
		t.Fatalf("de sibling = %q, %v, want append", got, ok)
	}
	if _, ok := resolved.For(root); ok {
		t.Fatal("expected uncovered point to have no entry")
	}
}

func TestFromPointSetDefaultsToAppend(t *testing.T) {
	legacy := FromPointSet(dimension.NewPointSet(en, de))
	if legacy.Len() != 2 {
		t.Fatalf("len = %d, want 2", legacy.Len())
	}
	for _, entry := range legacy.Entries() {
		if entry.SucceedingSiblingID != "" {
			t.Fatalf("entry %s sibling = %q, want append", entry.Point, entry.SucceedingSiblingID)
		}
	}
}

func TestConstructorsProduceSameValueType(t *testing.T) {
	explicit := New(Entry{Point: en}, Entry{Point: de})
	legacy := FromPointSet(dimension.NewPointSet(en, de))

	a, err := json.Marshal(explicit)
	if err != nil {
		t.Fatalf("marshal explicit: %v", err)
	}
	b, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal legacy: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("explicit %s != legacy %s", a, b)
	}
}

func TestResolveDropsUncoveredEntries(t *testing.T) {
	s := ForCoverage(dimension.NewPointSet(en, de, root), "node-x")
	resolved := s.Resolve(dimension.NewPointSet(de))
	if resolved.Len() != 1 {
		t.Fatalf("len = %d, want 1", resolved.Len())
	}
	if got, _ := resolved.For(de); got != "node-x" {
		t.Fatalf("de sibling = %q, want node-x", got)
	}
}

func TestUnmarshalNullSibling(t *testing.T) {
	var s Siblings
	data := `[{"dimensionSpacePoint":{"lang":"en"},"nodeAggregateId":null},{"dimensionSpacePoint":{"lang":"de"},"nodeAggregateId":"node-c"}]`
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := s.For(en); !ok || got != "" {
		t.Fatalf("en sibling = %q, %v, want append", got, ok)
	}
	if got, _ := s.For(de); got != "node-c" {
		t.Fatalf("de sibling = %q, want node-c", got)
	}
}
