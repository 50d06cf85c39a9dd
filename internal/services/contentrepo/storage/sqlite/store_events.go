package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/louisbranch/contentrepo/internal/platform/id"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
)

const (
	encodingRaw  = 0
	encodingZstd = 1
)

// Shared by every store. EncodeAll and DecodeAll are safe for concurrent use;
// construction without options cannot fail.
var (
	payloadEncoder, _ = zstd.NewWriter(nil)
	payloadDecoder, _ = zstd.NewReader(nil)
)

var _ journal.Journal = (*Store)(nil)

const eventColumns = `seq, stream_id, version, event_type, timestamp, commit_id, commit_index, commit_size, payload, payload_encoding, event_hash, chain_hash`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Commit applies a commit in one transaction.
func (s *Store) Commit(ctx context.Context, commit journal.Commit) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if commit.ID == "" {
		commitID, err := id.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate commit id: %w", err)
		}
		commit.ID = commitID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("load last seq: %w", err)
	}

	prepared, err := journal.Prepare(ctx, commit, txLookup{q: tx}, uint64(lastSeq)+1, s.now().UTC())
	if err != nil {
		return nil, err
	}

	for _, head := range prepared.Heads {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO streams (stream_id, version, parent_id, parent_version, closed, chain_hash)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(stream_id) DO UPDATE SET version = excluded.version, closed = excluded.closed, chain_hash = excluded.chain_hash`,
			head.Info.ID, int64(head.Info.Version), head.Info.Lineage.ParentID, int64(head.Info.Lineage.ParentVersion),
			boolToInt(head.Info.Closed), head.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("put stream %s: %w", head.Info.ID, err)
		}
	}

	for _, evt := range prepared.Events {
		payload, encoding, err := s.encodePayload(evt.PayloadJSON)
		if err != nil {
			return nil, fmt.Errorf("encode event %d payload: %w", evt.Seq, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(evt.Seq), evt.StreamID, int64(evt.Version), string(evt.Type), toNanos(evt.Timestamp),
			evt.CommitID, evt.CommitIndex, evt.CommitSize, payload, encoding, evt.Hash, evt.ChainHash,
		); err != nil {
			if isConstraintError(err) {
				return nil, fmt.Errorf("append event %d to %s: %w", evt.Seq, evt.StreamID, journal.ErrConcurrentAppend)
			}
			return nil, fmt.Errorf("append event %d: %w", evt.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return prepared.Events, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func (s *Store) encodePayload(payload []byte) ([]byte, int, error) {
	if s.compressionThreshold <= 0 || len(payload) < s.compressionThreshold {
		return payload, encodingRaw, nil
	}
	return payloadEncoder.EncodeAll(payload, nil), encodingZstd, nil
}

func decodePayload(payload []byte, encoding int) ([]byte, error) {
	switch encoding {
	case encodingRaw:
		return payload, nil
	case encodingZstd:
		decompressed, err := payloadDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		return decompressed, nil
	default:
		return nil, fmt.Errorf("unknown payload encoding %d", encoding)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (event.Event, error) {
	var (
		evt                     event.Event
		seq, version, timestamp int64
		eventType               string
		payload                 []byte
		encoding                int
	)
	if err := row.Scan(&seq, &evt.StreamID, &version, &eventType, &timestamp, &evt.CommitID,
		&evt.CommitIndex, &evt.CommitSize, &payload, &encoding, &evt.Hash, &evt.ChainHash); err != nil {
		return event.Event{}, err
	}
	decoded, err := decodePayload(payload, encoding)
	if err != nil {
		return event.Event{}, fmt.Errorf("event %d: %w", seq, err)
	}
	evt.Seq = uint64(seq)
	evt.Version = uint64(version)
	evt.Type = event.Type(eventType)
	evt.Timestamp = fromNanos(timestamp)
	evt.PayloadJSON = decoded
	return evt, nil
}

func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]event.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// ReadStream returns the logical stream after a version.
func (s *Store) ReadStream(ctx context.Context, streamID string, afterVersion uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	segments, err := loadSegments(ctx, tx, streamID)
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, seg := range segments {
		from := max(seg.from, afterVersion)
		if from >= seg.to {
			continue
		}
		remaining := -1
		if limit > 0 {
			remaining = limit - len(out)
		}
		events, err := queryEvents(ctx, tx,
			`SELECT `+eventColumns+` FROM events WHERE stream_id = ? AND version > ? AND version <= ? ORDER BY version LIMIT ?`,
			seg.streamID, int64(from), int64(seg.to), remaining)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", seg.streamID, err)
		}
		for _, evt := range events {
			out = append(out, evt.Readdress(streamID))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// segment is the range of versions a stream contributes to a logical read:
// its own events in (from, to].
type segment struct {
	streamID string
	from, to uint64
}

// loadSegments walks the lineage of a stream and returns its segments, oldest
// ancestor first.
func loadSegments(ctx context.Context, q querier, streamID string) ([]segment, error) {
	info, ok, err := loadStream(ctx, q, streamID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, journal.StreamNotFound(streamID)
	}
	var reversed []segment
	upTo := info.Info.Version
	for {
		lineage := info.Info.Lineage
		reversed = append(reversed, segment{streamID: info.Info.ID, from: lineage.ParentVersion, to: upTo})
		if lineage.IsRoot() {
			break
		}
		upTo = min(upTo, lineage.ParentVersion)
		info, ok, err = loadStream(ctx, q, lineage.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("parent of %s: %w", streamID, journal.StreamNotFound(lineage.ParentID))
		}
	}
	segments := make([]segment, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		segments = append(segments, reversed[i])
	}
	return segments, nil
}

func loadStream(ctx context.Context, q querier, streamID string) (journal.Head, bool, error) {
	var (
		head                           journal.Head
		version, parentVersion, closed int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT stream_id, version, parent_id, parent_version, closed, chain_hash FROM streams WHERE stream_id = ?`, streamID,
	).Scan(&head.Info.ID, &version, &head.Info.Lineage.ParentID, &parentVersion, &closed, &head.ChainHash)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Head{}, false, nil
	}
	if err != nil {
		return journal.Head{}, false, fmt.Errorf("load stream %s: %w", streamID, err)
	}
	head.Info.Version = uint64(version)
	head.Info.Lineage.ParentVersion = uint64(parentVersion)
	head.Info.Closed = closed != 0
	return head, true, nil
}

// ReadAll returns events in global order after a sequence number.
func (s *Store) ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	events, err := queryEvents(ctx, s.sqlDB,
		`SELECT `+eventColumns+` FROM events WHERE seq > ? ORDER BY seq LIMIT ?`, int64(afterSeq), limit)
	if err != nil {
		return nil, fmt.Errorf("read all after %d: %w", afterSeq, err)
	}
	return events, nil
}

// StreamInfo returns the head of a stream.
func (s *Store) StreamInfo(ctx context.Context, streamID string) (journal.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return journal.StreamInfo{}, err
	}
	head, ok, err := loadStream(ctx, s.sqlDB, streamID)
	if err != nil {
		return journal.StreamInfo{}, err
	}
	if !ok {
		return journal.StreamInfo{}, journal.StreamNotFound(streamID)
	}
	return head.Info, nil
}

// ListStreams returns the streams whose id has the prefix, ordered by id.
func (s *Store) ListStreams(ctx context.Context, prefix string) ([]journal.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT stream_id, version, parent_id, parent_version, closed FROM streams WHERE ? = '' OR instr(stream_id, ?) = 1 ORDER BY stream_id`,
		prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var out []journal.StreamInfo
	for rows.Next() {
		var (
			info                           journal.StreamInfo
			version, parentVersion, closed int64
		)
		if err := rows.Scan(&info.ID, &version, &info.Lineage.ParentID, &parentVersion, &closed); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		info.Version = uint64(version)
		info.Lineage.ParentVersion = uint64(parentVersion)
		info.Closed = closed != 0
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read streams: %w", err)
	}
	return out, nil
}

// txLookup resolves heads inside a commit transaction.
type txLookup struct {
	q querier
}

func (l txLookup) Head(ctx context.Context, streamID string) (journal.Head, bool, error) {
	return loadStream(ctx, l.q, streamID)
}

func (l txLookup) ChainHashAt(ctx context.Context, streamID string, version uint64) (string, error) {
	if version == 0 {
		return "", nil
	}
	segments, err := loadSegments(ctx, l.q, streamID)
	if err != nil {
		return "", err
	}
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if version <= seg.from || version > seg.to {
			continue
		}
		var chain string
		err := l.q.QueryRowContext(ctx,
			`SELECT chain_hash FROM events WHERE stream_id = ? AND version = ?`, seg.streamID, int64(version),
		).Scan(&chain)
		if err != nil {
			return "", fmt.Errorf("chain hash of %s at %d: %w", seg.streamID, version, err)
		}
		return chain, nil
	}
	return "", fmt.Errorf("version %d of %s is beyond its head", version, streamID)
}
