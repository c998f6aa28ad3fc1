package store

import (
	"context"
	"fmt"

	"github.com/rcliao/recall/internal/model"
)

const secondsPerDay = 24 * 60 * 60

// ExportAll returns all non-deleted memories, optionally filtered by user.
// Expired memories are included until a purge removes them.
func (s *SQLiteStore) ExportAll(ctx context.Context, userID string) ([]model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE m.deleted_at IS NULL`
	var args []any
	if userID != "" {
		query += ` AND m.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY m.user_id, m.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return scanMemories(rows)
}

// Import stores memories from an export with Add semantics, so duplicates
// refresh instead of multiplying. Deleted and already expired memories are
// skipped; a remaining TTL is rounded up to whole days. The import runs in
// one transaction: on error nothing is stored and the count is zero.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	imported := 0
	for _, m := range memories {
		if m.DeletedAt != nil || m.Expired(now) {
			continue
		}

		ttl := 0
		if m.ExpiresAt != nil {
			secs := m.ExpiresAt.Unix() - now.Unix()
			ttl = int((secs + secondsPerDay - 1) / secondsPerDay)
		}

		p := AddParams{
			UserID:  m.UserID,
			Text:    m.Text,
			Tags:    m.Tags,
			TTLDays: ttl,
		}
		if err := validateAdd(p); err != nil {
			return 0, fmt.Errorf("import memory %d: %w", m.ID, err)
		}
		if _, err := s.addTx(ctx, tx, p, now); err != nil {
			return 0, fmt.Errorf("import memory %d: %w", m.ID, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}
