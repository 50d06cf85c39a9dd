package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
)

var _ assetusage.Repository = (*Store)(nil)

// AddUsagesForNode replaces the usages of the listed properties of one
// occurrence.
func (s *Store) AddUsagesForNode(ctx context.Context, addr assetusage.Address, ids assetusage.IDsByProperty) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	origin := addr.Origin.Hash()
	for property, assetIDs := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM asset_usages WHERE content_stream_id = ? AND node_aggregate_id = ? AND origin = ? AND property_name = ?`,
			addr.ContentStreamID, addr.NodeAggregateID, origin, property); err != nil {
			return fmt.Errorf("clear usages of %s.%s: %w", addr.NodeAggregateID, property, err)
		}
		for _, assetID := range assetIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO asset_usages (content_stream_id, node_aggregate_id, origin, property_name, asset_id) VALUES (?, ?, ?, ?, ?)`,
				addr.ContentStreamID, addr.NodeAggregateID, origin, property, assetID); err != nil {
				return fmt.Errorf("add usage of %s.%s: %w", addr.NodeAggregateID, property, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RemoveNode drops an aggregate's usages at the given origins, or at every
// origin when the set is empty.
func (s *Store) RemoveNode(ctx context.Context, contentStreamID, nodeAggregateID string, origins dimension.OriginSet) error {
	query := `DELETE FROM asset_usages WHERE content_stream_id = ? AND node_aggregate_id = ?`
	args := []any{contentStreamID, nodeAggregateID}
	if !origins.IsEmpty() {
		list := origins.Origins()
		placeholders := make([]string, 0, len(list))
		for _, origin := range list {
			placeholders = append(placeholders, "?")
			args = append(args, origin.Hash())
		}
		query += ` AND origin IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if _, err := s.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove usages of %s: %w", nodeAggregateID, err)
	}
	return nil
}

func (s *Store) CopyDimensions(ctx context.Context, contentStreamID, nodeAggregateID string, source, target dimension.Origin) error {
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO asset_usages (content_stream_id, node_aggregate_id, origin, property_name, asset_id)
SELECT content_stream_id, node_aggregate_id, ?, property_name, asset_id
FROM asset_usages WHERE content_stream_id = ? AND node_aggregate_id = ? AND origin = ?`,
		target.Hash(), contentStreamID, nodeAggregateID, source.Hash()); err != nil {
		return fmt.Errorf("copy usages of %s to %s: %w", nodeAggregateID, target, err)
	}
	return nil
}

func (s *Store) CopyContentStream(ctx context.Context, sourceID, targetID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO asset_usages (content_stream_id, node_aggregate_id, origin, property_name, asset_id)
SELECT ?, node_aggregate_id, origin, property_name, asset_id
FROM asset_usages WHERE content_stream_id = ?`, targetID, sourceID); err != nil {
		return fmt.Errorf("copy usages of %s to %s: %w", sourceID, targetID, err)
	}
	return nil
}

func (s *Store) RemoveContentStream(ctx context.Context, contentStreamID string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM asset_usages WHERE content_stream_id = ?`, contentStreamID); err != nil {
		return fmt.Errorf("remove usages of %s: %w", contentStreamID, err)
	}
	return nil
}

// Find lists the usages matching a filter.
func (s *Store) Find(ctx context.Context, filter assetusage.Filter) ([]assetusage.Usage, error) {
	query := `SELECT content_stream_id, node_aggregate_id, origin, property_name, asset_id FROM asset_usages WHERE 1 = 1`
	var args []any
	if filter.AssetID != "" {
		query += ` AND asset_id = ?`
		args = append(args, filter.AssetID)
	}
	if filter.ContentStreamID != "" {
		query += ` AND content_stream_id = ?`
		args = append(args, filter.ContentStreamID)
	}
	if filter.NodeAggregateID != "" {
		query += ` AND node_aggregate_id = ?`
		args = append(args, filter.NodeAggregateID)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find usages: %w", err)
	}
	defer rows.Close()

	var usages []assetusage.Usage
	for rows.Next() {
		var (
			u      assetusage.Usage
			origin string
		)
		if err := rows.Scan(&u.ContentStreamID, &u.NodeAggregateID, &origin, &u.PropertyName, &u.AssetID); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		if err := json.Unmarshal([]byte(origin), &u.Origin); err != nil {
			return nil, fmt.Errorf("decode origin of %s: %w", u.NodeAggregateID, err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read usages: %w", err)
	}
	assetusage.Sort(usages)
	return usages, nil
}

// Reset drops every usage.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM asset_usages`); err != nil {
		return fmt.Errorf("reset asset usages: %w", err)
	}
	return nil
}
