// Package journaltest holds behaviour tests every journal implementation must
// pass.
package journaltest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
)

// Run exercises a journal implementation. newJournal must return an empty
// journal for every call.
func Run(t *testing.T, newJournal func(t *testing.T) journal.Journal) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, j journal.Journal)
	}{
		{name: "append and read", fn: testAppendAndRead},
		{name: "expected version", fn: testExpectedVersion},
		{name: "fork read-back", fn: testForkReadBack},
		{name: "fork isolation", fn: testForkIsolation},
		{name: "closed stream", fn: testClosedStream},
		{name: "atomic commit", fn: testAtomicCommit},
		{name: "commit fields", fn: testCommitFields},
		{name: "list streams", fn: testListStreams},
		{name: "paging", fn: testPaging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newJournal(t))
		})
	}
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Payload builds an event carrying a numbered property change.
func Payload(n int) event.Event {
	return event.Event{
		Type:        event.TypeNodePropertiesWereSet,
		Timestamp:   baseTime.Add(time.Duration(n) * time.Second),
		PayloadJSON: []byte(fmt.Sprintf(`{"nodeAggregateId":"n%d","originDimensionSpacePoint":{},"propertyValues":{}}`, n)),
	}
}

func payloads(from, to int) []event.Event {
	var out []event.Event
	for n := from; n <= to; n++ {
		out = append(out, Payload(n))
	}
	return out
}

func commit(t *testing.T, j journal.Journal, id string, appends ...journal.Append) []event.Event {
	t.Helper()
	written, err := j.Commit(context.Background(), journal.Commit{ID: id, Appends: appends})
	if err != nil {
		t.Fatalf("commit %s: %v", id, err)
	}
	return written
}

func read(t *testing.T, j journal.Journal, streamID string) []event.Event {
	t.Helper()
	events, err := journal.ReadFullStream(context.Background(), j, streamID)
	if err != nil {
		t.Fatalf("read %s: %v", streamID, err)
	}
	return events
}

func bodies(events []event.Event) []string {
	out := make([]string, 0, len(events))
	for _, evt := range events {
		out = append(out, string(evt.PayloadJSON))
	}
	return out
}

func testAppendAndRead(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 2)})
	commit(t, j, "c2", journal.Append{StreamID: "cs-1", Expected: 2, Events: payloads(3, 3)})

	events := read(t, j, "cs-1")
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, evt := range events {
		if evt.Version != uint64(i+1) || evt.Seq != uint64(i+1) || evt.StreamID != "cs-1" {
			t.Fatalf("event %d = seq %d version %d stream %s", i, evt.Seq, evt.Version, evt.StreamID)
		}
		if evt.Hash != event.ComputeHash(evt) {
			t.Fatalf("event %d hash mismatch", i)
		}
	}
	if events[1].ChainHash != event.ChainHash(events[0].ChainHash, events[1].Hash) {
		t.Fatal("chain hash does not link to predecessor")
	}
	if !events[0].Timestamp.Equal(baseTime.Add(time.Second)) {
		t.Fatalf("timestamp = %v, want %v", events[0].Timestamp, baseTime.Add(time.Second))
	}

	after, err := j.ReadStream(context.Background(), "cs-1", 2, 0)
	if err != nil {
		t.Fatalf("read after: %v", err)
	}
	if len(after) != 1 || after[0].Version != 3 {
		t.Fatalf("read after 2 = %v, want version 3", after)
	}
	if _, err := j.ReadStream(context.Background(), "missing", 0, 0); !errors.Is(err, journal.ErrStreamNotFound) {
		t.Fatalf("error = %v, want ErrStreamNotFound", err)
	}
}

func testExpectedVersion(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 1)})

	_, err := j.Commit(context.Background(), journal.Commit{ID: "c2", Appends: []journal.Append{{StreamID: "cs-1", Expected: 0, Events: payloads(2, 2)}}})
	if !errors.Is(err, journal.ErrConcurrentAppend) {
		t.Fatalf("error = %v, want ErrConcurrentAppend", err)
	}
	var conflict *journal.ConcurrentAppendError
	if !errors.As(err, &conflict) || conflict.Actual != 1 {
		t.Fatalf("error = %#v, want actual version 1", err)
	}
	commit(t, j, "c3", journal.Append{StreamID: "cs-1", Expected: journal.AnyVersion, Events: payloads(2, 2)})

	_, err = j.Commit(context.Background(), journal.Commit{ID: "c4", Appends: []journal.Append{{StreamID: "cs-1", Create: &journal.Lineage{}}}})
	if !errors.Is(err, journal.ErrStreamExists) {
		t.Fatalf("error = %v, want ErrStreamExists", err)
	}
	_, err = j.Commit(context.Background(), journal.Commit{ID: "c5", Appends: []journal.Append{{StreamID: "cs-9", Events: payloads(1, 1)}}})
	if !errors.Is(err, journal.ErrStreamNotFound) {
		t.Fatalf("error = %v, want ErrStreamNotFound", err)
	}
}

func testForkReadBack(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 3)})
	commit(t, j, "c2", journal.Append{StreamID: "cs-2", Create: &journal.Lineage{ParentID: "cs-1", ParentVersion: 3}})
	commit(t, j, "c3", journal.Append{StreamID: "cs-3", Create: &journal.Lineage{ParentID: "cs-2", ParentVersion: 3}})

	source := read(t, j, "cs-1")
	for _, forkID := range []string{"cs-2", "cs-3"} {
		fork := read(t, j, forkID)
		if len(fork) != len(source) {
			t.Fatalf("%s events = %d, want %d", forkID, len(fork), len(source))
		}
		for i := range source {
			want := source[i].Readdress(forkID)
			if diff := cmp.Diff(want, fork[i]); diff != "" {
				t.Fatalf("%s event %d (-want +got):\n%s", forkID, i, diff)
			}
		}
	}
	info, err := j.StreamInfo(context.Background(), "cs-3")
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.Version != 3 || info.Lineage.ParentID != "cs-2" {
		t.Fatalf("info = %+v, want version 3 forked from cs-2", info)
	}
}

func testForkIsolation(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 3)})
	commit(t, j, "c2", journal.Append{StreamID: "cs-2", Create: &journal.Lineage{ParentID: "cs-1", ParentVersion: 2}, Events: payloads(10, 10)})
	commit(t, j, "c3", journal.Append{StreamID: "cs-1", Expected: 3, Events: payloads(4, 4)})

	want := []string{string(Payload(1).PayloadJSON), string(Payload(2).PayloadJSON), string(Payload(10).PayloadJSON)}
	fork := read(t, j, "cs-2")
	if diff := cmp.Diff(want, bodies(fork)); diff != "" {
		t.Fatalf("fork (-want +got):\n%s", diff)
	}
	if fork[2].Version != 3 {
		t.Fatalf("fork own event version = %d, want 3", fork[2].Version)
	}
	if got := len(read(t, j, "cs-1")); got != 4 {
		t.Fatalf("source events = %d, want 4", got)
	}
}

func testClosedStream(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 1)})
	commit(t, j, "c2", journal.Append{StreamID: "cs-1", Expected: 1, Close: true})

	_, err := j.Commit(context.Background(), journal.Commit{ID: "c3", Appends: []journal.Append{{StreamID: "cs-1", Expected: journal.AnyVersion, Events: payloads(2, 2)}}})
	if !errors.Is(err, journal.ErrStreamClosed) {
		t.Fatalf("error = %v, want ErrStreamClosed", err)
	}
	commit(t, j, "c4", journal.Append{StreamID: "cs-2", Create: &journal.Lineage{ParentID: "cs-1", ParentVersion: 1}, Events: payloads(2, 2)})
	if got := len(read(t, j, "cs-2")); got != 2 {
		t.Fatalf("fork of closed stream events = %d, want 2", got)
	}
	info, err := j.StreamInfo(context.Background(), "cs-1")
	if err != nil || !info.Closed {
		t.Fatalf("info = %+v, %v, want closed", info, err)
	}
}

func testAtomicCommit(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 1)})

	_, err := j.Commit(context.Background(), journal.Commit{ID: "c2", Appends: []journal.Append{
		{StreamID: "cs-1", Expected: 1, Events: payloads(2, 2)},
		{StreamID: "cs-2", Create: &journal.Lineage{}, Events: payloads(3, 3)},
		{StreamID: "cs-1", Expected: 1, Events: payloads(4, 4)},
	}})
	if !errors.Is(err, journal.ErrConcurrentAppend) {
		t.Fatalf("error = %v, want ErrConcurrentAppend", err)
	}
	all, err := j.ReadAll(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("events after failed commit = %d, want 1", len(all))
	}
	if _, err := j.StreamInfo(context.Background(), "cs-2"); !errors.Is(err, journal.ErrStreamNotFound) {
		t.Fatalf("error = %v, want ErrStreamNotFound", err)
	}
}

func testCommitFields(t *testing.T, j journal.Journal) {
	written := commit(t, j, "c1",
		journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 2)},
		journal.Append{StreamID: event.ContentStreamMetaID("cs-1"), Create: &journal.Lineage{}, Events: []event.Event{{
			Type:        event.TypeContentStreamWasCreated,
			PayloadJSON: []byte(`{"contentStreamId":"cs-1"}`),
		}}},
	)
	if len(written) != 3 {
		t.Fatalf("written = %d, want 3", len(written))
	}
	for i, evt := range written {
		if evt.CommitID != "c1" || evt.CommitIndex != i+1 || evt.CommitSize != 3 {
			t.Fatalf("event %d commit = %s %d/%d", i, evt.CommitID, evt.CommitIndex, evt.CommitSize)
		}
		if evt.EndsCommit() != (i == 2) {
			t.Fatalf("event %d EndsCommit = %v", i, evt.EndsCommit())
		}
	}
	all, err := j.ReadAll(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if diff := cmp.Diff(written, all); diff != "" {
		t.Fatalf("read all (-written +read):\n%s", diff)
	}
	if all[2].Timestamp.IsZero() {
		t.Fatal("expected timestamp to default to commit time")
	}
}

func testListStreams(t *testing.T, j journal.Journal) {
	commit(t, j, "c1",
		journal.Append{StreamID: event.WorkspaceStreamID("live"), Create: &journal.Lineage{}},
		journal.Append{StreamID: event.WorkspaceStreamID("user"), Create: &journal.Lineage{}},
		journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}},
	)
	streams, err := j.ListStreams(context.Background(), event.WorkspaceStreamPrefix())
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	var ids []string
	for _, info := range streams {
		ids = append(ids, info.ID)
	}
	if diff := cmp.Diff([]string{"workspace:live", "workspace:user"}, ids); diff != "" {
		t.Fatalf("streams (-want +got):\n%s", diff)
	}

	all, err := j.ListStreams(context.Background(), "")
	if err != nil {
		t.Fatalf("list all streams: %v", err)
	}
	ids = ids[:0]
	for _, info := range all {
		ids = append(ids, info.ID)
	}
	if diff := cmp.Diff([]string{"cs-1", "workspace:live", "workspace:user"}, ids); diff != "" {
		t.Fatalf("all streams (-want +got):\n%s", diff)
	}
}

func testPaging(t *testing.T, j journal.Journal) {
	commit(t, j, "c1", journal.Append{StreamID: "cs-1", Create: &journal.Lineage{}, Events: payloads(1, 5)})

	var seqs []uint64
	var after uint64
	for {
		page, err := j.ReadAll(context.Background(), after, 2)
		if err != nil {
			t.Fatalf("read all: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, evt := range page {
			seqs = append(seqs, evt.Seq)
		}
		after = page[len(page)-1].Seq
	}
	if diff := cmp.Diff([]uint64{1, 2, 3, 4, 5}, seqs); diff != "" {
		t.Fatalf("seqs (-want +got):\n%s", diff)
	}
	limited, err := j.ReadStream(context.Background(), "cs-1", 1, 2)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(limited) != 2 || limited[0].Version != 2 {
		t.Fatalf("limited read = %d events from %d, want 2 from 2", len(limited), limited[0].Version)
	}
}
