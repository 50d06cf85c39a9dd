package nodeaggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/sibling"
)

const languageYAML = `
dimensions:
  - name: lang
    values:
      - value: root
        specializations:
          - value: en
            specializations:
              - value: en_US
          - value: de
          - value: fr
`

const languageRegionYAML = `
dimensions:
  - name: lang
    values:
      - value: root
        specializations:
          - value: en
          - value: de
  - name: region
    values:
      - value: world
        specializations:
          - value: eu
          - value: us
`

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newDimensions(t *testing.T, yamlConfig string) *dimension.VariationGraph {
	t.Helper()
	cfg, err := dimension.ParseConfig([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	dims, err := dimension.NewVariationGraph(cfg)
	if err != nil {
		t.Fatalf("new variation graph: %v", err)
	}
	return dims
}

func lang(value string) dimension.Origin {
	return dimension.OriginOf(dimension.PointFrom(map[string]string{"lang": value}))
}

func langRegion(l, r string) dimension.Origin {
	return dimension.OriginOf(dimension.PointFrom(map[string]string{"lang": l, "region": r}))
}

func apply(t *testing.T, g *Graph, payloads ...event.NodePayload) {
	t.Helper()
	for _, payload := range payloads {
		if err := Apply(context.Background(), g, event.Event{Type: payload.EventType()}, payload); err != nil {
			t.Fatalf("apply %s: %v", payload.EventType(), err)
		}
	}
}

func create(id string, origin dimension.Origin) event.NodeAggregateWithNodeWasCreated {
	return event.NodeAggregateWithNodeWasCreated{
		NodeAggregateID:           id,
		NodeTypeName:              "Page",
		OriginDimensionSpacePoint: origin,
		InitialPropertyValues:     event.PropertyValues{"title": {Value: id, Type: "string"}},
	}
}

func childOf(id, parent string, origin dimension.Origin) event.NodeAggregateWithNodeWasCreated {
	created := create(id, origin)
	created.ParentNodeAggregateID = parent
	return created
}

func TestGeneralizationScenarioCoverage(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g,
		create("A", lang("en")),
		event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), GeneralizationOrigin: lang("root")},
	)

	tests := []struct {
		point string
		want  dimension.Origin
	}{
		{point: "en", want: lang("en")},
		{point: "en_US", want: lang("en")},
		{point: "de", want: lang("root")},
		{point: "root", want: lang("root")},
	}
	for _, tt := range tests {
		got, err := g.ControllingOrigin("A", lang(tt.point).Point())
		if err != nil {
			t.Fatalf("controlling origin of %s: %v", tt.point, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("controlling origin of %s = %s, want %s", tt.point, got, tt.want)
		}
	}
	if got := g.Children("", lang("de").Point()); len(got) != 1 || got[0] != "A" {
		t.Fatalf("children at de = %v, want [A]", got)
	}
	if got, want := g.CoverageOf("A", lang("root")).Len(), 3; got != want {
		t.Fatalf("root coverage = %d points, want %d", got, want)
	}
}

func TestVariantPreconditions(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g, create("A", lang("en")), childOf("C", "A", lang("en")))

	tests := []struct {
		name    string
		payload event.NodePayload
		want    error
	}{
		{
			name:    "create where parent is not visible",
			payload: childOf("B", "A", lang("de")),
			want:    ErrParentNotCovering,
		},
		{
			name:    "variant where parent is not visible",
			payload: event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "C", SourceOrigin: lang("en"), GeneralizationOrigin: lang("root")},
			want:    ErrParentNotCovering,
		},
		{
			name:    "create existing",
			payload: create("A", lang("de")),
			want:    ErrNodeAggregateAlreadyExists,
		},
		{
			name:    "create under missing parent",
			payload: event.NodeAggregateWithNodeWasCreated{NodeAggregateID: "B", NodeTypeName: "Text", OriginDimensionSpacePoint: lang("en"), ParentNodeAggregateID: "missing"},
			want:    ErrNodeAggregateNotFound,
		},
		{
			name:    "create at unknown value",
			payload: create("B", lang("xx")),
			want:    dimension.ErrUnknownDimensionValue,
		},
		{
			name:    "source not occupied",
			payload: event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("de"), GeneralizationOrigin: lang("root")},
			want:    ErrSourceOriginNotFound,
		},
		{
			name:    "target occupied",
			payload: event.NodePeerVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), PeerOrigin: lang("en")},
			want:    ErrTargetOriginAlreadyOccupied,
		},
		{
			name:    "generalize to specialization",
			payload: event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), GeneralizationOrigin: lang("en_US")},
			want:    ErrInvalidVariation,
		},
		{
			name:    "specialize to peer",
			payload: event.NodeSpecializationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), SpecializationOrigin: lang("de")},
			want:    ErrInvalidVariation,
		},
		{
			name:    "peer to generalization",
			payload: event.NodePeerVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), PeerOrigin: lang("root")},
			want:    ErrInvalidVariation,
		},
		{
			name:    "set properties on unoccupied origin",
			payload: event.NodePropertiesWereSet{NodeAggregateID: "A", OriginDimensionSpacePoint: lang("de")},
			want:    ErrOriginNotFound,
		},
		{
			name:    "remove missing aggregate",
			payload: event.NodeAggregateWasRemoved{NodeAggregateID: "Z"},
			want:    ErrNodeAggregateNotFound,
		},
		{
			name:    "missing aggregate id",
			payload: event.NodePropertiesWereSet{OriginDimensionSpacePoint: lang("en")},
			want:    ErrNodeAggregateIDRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Check(tt.payload); !errors.Is(err, tt.want) {
				t.Fatalf("check error = %v, want %v", err, tt.want)
			}
			if err := Apply(context.Background(), g, event.Event{}, tt.payload); !errors.Is(err, tt.want) {
				t.Fatalf("apply error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := g.Origins("A").Len(); got != 1 {
		t.Fatalf("origins after rejected events = %d, want 1", got)
	}
	if g.Has("B") {
		t.Fatal("expected rejected child to be absent")
	}
}

func TestRemovalCascadesToUncoveredDescendants(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g,
		create("A", lang("en")),
		event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), GeneralizationOrigin: lang("root")},
		childOf("D", "A", lang("en")),
		childOf("B", "A", lang("de")),
		event.NodePeerVariantWasCreated{NodeAggregateID: "B", SourceOrigin: lang("de"), PeerOrigin: lang("en")},
		childOf("C", "B", lang("de")),
	)

	apply(t, g, event.NodeAggregateWasRemoved{NodeAggregateID: "A", AffectedOccupiedDimensionSpacePoints: dimension.NewOriginSet(lang("root"))})

	if diff := cmp.Diff([]string{"A", "B", "D"}, g.AggregateIDs()); diff != "" {
		t.Fatalf("aggregates mismatch (-want +got):\n%s", diff)
	}
	if got := g.Origins("B"); got.Len() != 1 || !got.Contains(lang("en")) {
		t.Fatalf("B origins = %v, want [en]", got.Origins())
	}
	if _, ok := g.Occurrence("B", lang("de")); ok {
		t.Fatal("expected B at de to be removed with its parent's coverage")
	}
	if got := g.Children("A", lang("de").Point()); len(got) != 0 {
		t.Fatalf("children of A at de = %v, want none", got)
	}
	if got := g.Children("B", lang("de").Point()); len(got) != 0 {
		t.Fatalf("children of B at de = %v, want none", got)
	}
	if diff := cmp.Diff([]string{"D", "B"}, g.Children("A", lang("en_US").Point())); diff != "" {
		t.Fatalf("children of A at en_US (-want +got):\n%s", diff)
	}
	if err := g.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	apply(t, g, event.NodeAggregateWasRemoved{NodeAggregateID: "A"})
	if got := g.AggregateIDs(); len(got) != 0 {
		t.Fatalf("aggregates = %v, want none", got)
	}
	if got := g.Children("A", lang("en").Point()); len(got) != 0 {
		t.Fatalf("children of A at en = %v, want none", got)
	}
	if err := Apply(context.Background(), g, event.Event{}, event.NodePropertiesWereSet{NodeAggregateID: "D", OriginDimensionSpacePoint: lang("en")}); !errors.Is(err, ErrNodeAggregateNotFound) {
		t.Fatalf("error = %v, want ErrNodeAggregateNotFound", err)
	}
}

func TestPeerVariantRejectsAmbiguousCoverage(t *testing.T) {
	g := NewGraph(newDimensions(t, languageRegionYAML))
	apply(t, g, create("A", langRegion("en", "world")))

	err := g.Check(event.NodePeerVariantWasCreated{NodeAggregateID: "A", SourceOrigin: langRegion("en", "world"), PeerOrigin: langRegion("root", "eu")})
	if !errors.Is(err, dimension.ErrAmbiguousCoverage) {
		t.Fatalf("error = %v, want ErrAmbiguousCoverage", err)
	}
	err = g.Check(event.NodePeerVariantWasCreated{NodeAggregateID: "A", SourceOrigin: langRegion("en", "world"), PeerOrigin: langRegion("de", "world")})
	if err != nil {
		t.Fatalf("unambiguous peer rejected: %v", err)
	}
}

func TestSiblingOrderPerPoint(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g, create("B", lang("root")))

	c := create("C", lang("root"))
	c.SucceedingSiblings = sibling.New(sibling.Entry{Point: lang("root").Point(), SucceedingSiblingID: "B"})
	apply(t, g, c)

	if diff := cmp.Diff([]string{"C", "B"}, g.Children("", lang("root").Point())); diff != "" {
		t.Fatalf("children at root (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B", "C"}, g.Children("", lang("de").Point())); diff != "" {
		t.Fatalf("children at de (-want +got):\n%s", diff)
	}

	apply(t, g, event.NodeSpecializationVariantWasCreated{
		NodeAggregateID:        "B",
		SourceOrigin:           lang("root"),
		SpecializationOrigin:   lang("de"),
		SpecializationSiblings: sibling.ForCoverage(dimension.NewPointSet(lang("de").Point()), "C"),
	})
	if diff := cmp.Diff([]string{"B", "C"}, g.Children("", lang("de").Point())); diff != "" {
		t.Fatalf("children at de after specialization (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"C", "B"}, g.Children("", lang("root").Point())); diff != "" {
		t.Fatalf("children at root after specialization (-want +got):\n%s", diff)
	}
}

func TestPropertiesMergeAndCopy(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g,
		create("A", lang("en")),
		event.NodePropertiesWereSet{
			NodeAggregateID:           "A",
			OriginDimensionSpacePoint: lang("en"),
			PropertyValues:            event.PropertyValues{"body": {Value: "hi", Type: "string"}},
			PropertiesToUnset:         []string{"title"},
		},
		event.NodePeerVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), PeerOrigin: lang("de")},
	)

	want := event.PropertyValues{"body": {Value: "hi", Type: "string"}}
	for _, origin := range []dimension.Origin{lang("en"), lang("de")} {
		occ, ok := g.Occurrence("A", origin)
		if !ok {
			t.Fatalf("missing occurrence at %s", origin)
		}
		if diff := cmp.Diff(want, occ.Properties); diff != "" {
			t.Fatalf("properties at %s (-want +got):\n%s", origin, diff)
		}
	}

	apply(t, g, event.NodePropertiesWereSet{
		NodeAggregateID:           "A",
		OriginDimensionSpacePoint: lang("de"),
		PropertyValues:            event.PropertyValues{"body": {Value: "hallo", Type: "string"}},
	})
	occ, _ := g.Occurrence("A", lang("en"))
	if occ.Properties["body"].Value != "hi" {
		t.Fatalf("en body = %v, want hi", occ.Properties["body"].Value)
	}
}

func TestPartialAndFullRemoval(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g,
		create("A", lang("en")),
		event.NodeGeneralizationVariantWasCreated{NodeAggregateID: "A", SourceOrigin: lang("en"), GeneralizationOrigin: lang("root")},
		event.NodeAggregateWasRemoved{NodeAggregateID: "A", AffectedOccupiedDimensionSpacePoints: dimension.NewOriginSet(lang("root"))},
	)

	if got := g.Children("", lang("de").Point()); len(got) != 0 {
		t.Fatalf("children at de = %v, want none", got)
	}
	if got := g.Children("", lang("en_US").Point()); len(got) != 1 {
		t.Fatalf("children at en_US = %v, want [A]", got)
	}
	if _, err := g.ControllingOrigin("A", lang("de").Point()); !errors.Is(err, dimension.ErrPointNotCovered) {
		t.Fatalf("error = %v, want ErrPointNotCovered", err)
	}

	apply(t, g, event.NodeAggregateWasRemoved{NodeAggregateID: "A"})
	if g.Has("A") {
		t.Fatal("expected aggregate to be removed")
	}
	if got := g.Children("", lang("en").Point()); len(got) != 0 {
		t.Fatalf("children at en = %v, want none", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	apply(t, g, create("A", lang("en")))
	clone := g.Clone()

	apply(t, clone,
		event.NodePropertiesWereSet{NodeAggregateID: "A", OriginDimensionSpacePoint: lang("en"), PropertyValues: event.PropertyValues{"title": {Value: "changed", Type: "string"}}},
		create("B", lang("de")),
	)

	occ, _ := g.Occurrence("A", lang("en"))
	if occ.Properties["title"].Value != "A" {
		t.Fatalf("source title = %v, want A", occ.Properties["title"].Value)
	}
	if g.Has("B") {
		t.Fatal("expected source graph to be unchanged by clone writes")
	}
}

func TestFoldSkipsNonNodeEvents(t *testing.T) {
	g := NewGraph(newDimensions(t, languageYAML))
	created, err := event.New("cs-1", create("A", lang("en")), testTime)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	forked, err := event.New(event.ContentStreamMetaID("cs-1"), event.ContentStreamWasForked{NewContentStreamID: "cs-1", SourceContentStreamID: "cs-0"}, testTime)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := Fold(g, forked, created); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !g.Has("A") {
		t.Fatal("expected aggregate A")
	}
	if err := Fold(g, created); !errors.Is(err, ErrNodeAggregateAlreadyExists) {
		t.Fatalf("refold error = %v, want ErrNodeAggregateAlreadyExists", err)
	}
}
