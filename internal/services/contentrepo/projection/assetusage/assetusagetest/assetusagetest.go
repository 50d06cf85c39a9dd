// Package assetusagetest holds behaviour tests every asset usage repository
// must pass.
package assetusagetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
)

// Lang returns the origin with a single lang coordinate.
func Lang(value string) dimension.Origin {
	return dimension.OriginOf(dimension.PointFrom(map[string]string{"lang": value}))
}

// Run exercises a repository. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) assetusage.Repository) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, repo assetusage.Repository)
	}{
		{name: "add replaces listed properties", fn: testAddReplaces},
		{name: "remove node", fn: testRemoveNode},
		{name: "copy dimensions", fn: testCopyDimensions},
		{name: "copy and remove content stream", fn: testContentStreams},
		{name: "find filter", fn: testFind},
		{name: "reset", fn: testReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepo(t))
		})
	}
}

func usage(stream, aggregate, lang, property, asset string) assetusage.Usage {
	return assetusage.Usage{
		AssetID:         asset,
		ContentStreamID: stream,
		NodeAggregateID: aggregate,
		Origin:          Lang(lang),
		PropertyName:    property,
	}
}

func add(t *testing.T, repo assetusage.Repository, stream, aggregate, lang string, ids assetusage.IDsByProperty) {
	t.Helper()
	addr := assetusage.Address{ContentStreamID: stream, NodeAggregateID: aggregate, Origin: Lang(lang)}
	if err := repo.AddUsagesForNode(context.Background(), addr, ids); err != nil {
		t.Fatalf("add usages: %v", err)
	}
}

func expect(t *testing.T, repo assetusage.Repository, filter assetusage.Filter, want ...assetusage.Usage) {
	t.Helper()
	got, err := repo.Find(context.Background(), filter)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assetusage.Sort(want)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("usages mismatch (-want +got):\n%s", diff)
	}
}

func testAddReplaces(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}, "text": {"a2", "a3"}})
	add(t, repo, "cs", "n1", "de", assetusage.IDsByProperty{"image": {"a1"}})
	add(t, repo, "cs", "n1", "en", assetusage.IDsByProperty{"text": {"a4"}, "image": nil})

	expect(t, repo, assetusage.Filter{},
		usage("cs", "n1", "de", "image", "a1"),
		usage("cs", "n1", "en", "text", "a4"),
	)
}

func testRemoveNode(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}})
	add(t, repo, "cs", "n1", "de", assetusage.IDsByProperty{"image": {"a1"}})
	add(t, repo, "other", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}})
	add(t, repo, "cs", "n2", "en", assetusage.IDsByProperty{"image": {"a2"}})
	ctx := context.Background()

	if err := repo.RemoveNode(ctx, "cs", "n1", dimension.NewOriginSet(Lang("en"))); err != nil {
		t.Fatalf("remove node: %v", err)
	}
	expect(t, repo, assetusage.Filter{},
		usage("cs", "n1", "de", "image", "a1"),
		usage("cs", "n2", "en", "image", "a2"),
		usage("other", "n1", "en", "image", "a1"),
	)

	if err := repo.RemoveNode(ctx, "cs", "n1", dimension.NewOriginSet()); err != nil {
		t.Fatalf("remove node: %v", err)
	}
	expect(t, repo, assetusage.Filter{ContentStreamID: "cs"},
		usage("cs", "n2", "en", "image", "a2"),
	)
}

func testCopyDimensions(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}, "text": {"a2"}})
	add(t, repo, "cs", "n2", "en", assetusage.IDsByProperty{"image": {"a3"}})

	if err := repo.CopyDimensions(context.Background(), "cs", "n1", Lang("en"), Lang("de")); err != nil {
		t.Fatalf("copy dimensions: %v", err)
	}
	expect(t, repo, assetusage.Filter{NodeAggregateID: "n1"},
		usage("cs", "n1", "de", "image", "a1"),
		usage("cs", "n1", "de", "text", "a2"),
		usage("cs", "n1", "en", "image", "a1"),
		usage("cs", "n1", "en", "text", "a2"),
	)
	expect(t, repo, assetusage.Filter{NodeAggregateID: "n2"},
		usage("cs", "n2", "en", "image", "a3"),
	)
}

func testContentStreams(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs-1", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}})
	ctx := context.Background()

	if err := repo.CopyContentStream(ctx, "cs-1", "cs-2"); err != nil {
		t.Fatalf("copy content stream: %v", err)
	}
	add(t, repo, "cs-2", "n1", "en", assetusage.IDsByProperty{"image": {"a2"}})
	expect(t, repo, assetusage.Filter{},
		usage("cs-1", "n1", "en", "image", "a1"),
		usage("cs-2", "n1", "en", "image", "a2"),
	)

	if err := repo.RemoveContentStream(ctx, "cs-1"); err != nil {
		t.Fatalf("remove content stream: %v", err)
	}
	expect(t, repo, assetusage.Filter{},
		usage("cs-2", "n1", "en", "image", "a2"),
	)
}

func testFind(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs-1", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}, "text": {"a2"}})
	add(t, repo, "cs-2", "n2", "en", assetusage.IDsByProperty{"image": {"a1"}})

	expect(t, repo, assetusage.Filter{AssetID: "a1"},
		usage("cs-1", "n1", "en", "image", "a1"),
		usage("cs-2", "n2", "en", "image", "a1"),
	)
	expect(t, repo, assetusage.Filter{AssetID: "a1", ContentStreamID: "cs-2"},
		usage("cs-2", "n2", "en", "image", "a1"),
	)
	expect(t, repo, assetusage.Filter{AssetID: "missing"})
}

func testReset(t *testing.T, repo assetusage.Repository) {
	add(t, repo, "cs", "n1", "en", assetusage.IDsByProperty{"image": {"a1"}})
	if err := repo.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	expect(t, repo, assetusage.Filter{})
}
