package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal/journaltest"
)

func TestEventsStoreJournal(t *testing.T) {
	journaltest.Run(t, func(t *testing.T) journal.Journal {
		return openTestEventsStore(t)
	})
}

func TestEventsStoreCompressesLargePayloads(t *testing.T) {
	ctx := context.Background()
	store := openTestEventsStore(t, WithCompressionThreshold(64))

	small := journaltest.Payload(1)
	large := journaltest.Payload(2)
	large.PayloadJSON = []byte(fmt.Sprintf(`{"nodeAggregateId":"n2","originDimensionSpacePoint":{},"propertyValues":{"text":{"type":"string","value":%q}}}`,
		strings.Repeat("lorem ipsum ", 200)))

	if _, err := store.Commit(ctx, journal.Commit{ID: "c1", Appends: []journal.Append{{
		StreamID: "cs-1",
		Create:   &journal.Lineage{},
		Events:   []event.Event{small, large},
	}}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var encodings []int
	rows, err := store.sqlDB.QueryContext(ctx, `SELECT payload_encoding FROM events ORDER BY seq`)
	if err != nil {
		t.Fatalf("query encodings: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var encoding int
		if err := rows.Scan(&encoding); err != nil {
			t.Fatalf("scan encoding: %v", err)
		}
		encodings = append(encodings, encoding)
	}
	if len(encodings) != 2 || encodings[0] != encodingRaw || encodings[1] != encodingZstd {
		t.Fatalf("encodings = %v, want [%d %d]", encodings, encodingRaw, encodingZstd)
	}

	events, err := store.ReadStream(ctx, "cs-1", 0, 0)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if got := string(events[1].PayloadJSON); got != string(large.PayloadJSON) {
		t.Fatalf("payload round-trip mismatch: got %d bytes, want %d", len(got), len(large.PayloadJSON))
	}
}

func TestPayloadCodecSharedAcrossGoroutines(t *testing.T) {
	store := &Store{compressionThreshold: 1}
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		payload := []byte(strings.Repeat(fmt.Sprintf("payload-%d ", i), 50+i))
		g.Go(func() error {
			encoded, encoding, err := store.encodePayload(payload)
			if err != nil {
				return err
			}
			if encoding != encodingZstd {
				return fmt.Errorf("encoding = %d, want %d", encoding, encodingZstd)
			}
			decoded, err := decodePayload(encoded, encoding)
			if err != nil {
				return err
			}
			if string(decoded) != string(payload) {
				return fmt.Errorf("decoded %d bytes, want %d", len(decoded), len(payload))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("round trip: %v", err)
	}

	if _, err := decodePayload([]byte("not zstd"), encodingZstd); err == nil {
		t.Fatal("expected corrupt payload to fail decoding")
	}
}

func TestEventsStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.sqlite")
	store, err := OpenEvents(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Commit(ctx, journal.Commit{ID: "c1", Appends: []journal.Append{{
		StreamID: "cs-1",
		Create:   &journal.Lineage{},
		Events:   []event.Event{journaltest.Payload(1)},
	}}}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenEvents(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	info, err := reopened.StreamInfo(ctx, "cs-1")
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.Version != 1 {
		t.Fatalf("version = %d, want 1", info.Version)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := OpenEvents(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
