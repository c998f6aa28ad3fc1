package store

import (
	"context"
	"fmt"
	"os"

	"github.com/rcliao/recall/internal/expiry"
	"github.com/rcliao/recall/internal/model"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string      `json:"db_path"`
	DBSizeBytes int64       `json:"db_size_bytes"`
	SearchMode  string      `json:"search_mode"`
	Total       int         `json:"total"`
	Active      int         `json:"active"`
	Expired     int         `json:"expired"`
	SoftDeleted int         `json:"soft_deleted"`
	Purgeable   int         `json:"purgeable"`
	Users       []UserStats `json:"users"`
}

// UserStats holds per-user counts of visible memories.
type UserStats struct {
	UserID string `json:"user_id"`
	Active int    `json:"active"`
}

// Stats returns database statistics. Counts use the same lifecycle
// predicates as Search and Purge.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, SearchMode: s.mode.String(), Users: []UserStats{}}

	if s.path != InMemory {
		if info, err := os.Stat(s.path); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	now := model.FormatTime(s.now())
	visible := expiry.ActiveSQL("") + " AND " + expiry.NotExpiredSQL("")

	counts := []struct {
		dst   *int
		where string
		args  []any
	}{
		{&st.Total, "1 = 1", nil},
		{&st.Active, visible, []any{now}},
		{&st.Expired, expiry.ActiveSQL("") + " AND " + expiry.ExpiredSQL(""), []any{now}},
		{&st.SoftDeleted, "deleted_at IS NOT NULL", nil},
		{&st.Purgeable, expiry.PurgeableSQL(""), []any{now}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memories WHERE `+c.where, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS cnt
		FROM memories WHERE `+visible+`
		GROUP BY user_id ORDER BY cnt DESC, user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("stats by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var u UserStats
		if err := rows.Scan(&u.UserID, &u.Active); err != nil {
			return nil, fmt.Errorf("stats by user: %w", err)
		}
		st.Users = append(st.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats by user: %w", err)
	}

	return st, nil
}
