package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/recall/internal/expiry"
	"github.com/rcliao/recall/internal/model"
)

// InMemory is the path that opens a private, non-persistent database.
const InMemory = ":memory:"

// Compile-time interface guard.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mode   SearchMode
	logger *slog.Logger
	clock  func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at the given path,
// ensures the schema exists and detects whether ranked search is available.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	if dbPath != InMemory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=synchronous(normal)"+
		"&_pragma=foreign_keys(on)&_pragma=busy_timeout(%d)&_txlock=immediate",
		dbPath, busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite serialises writers; one connection keeps the lookup-then-write
	// in Add atomic and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: opts.Logger,
		clock:  opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if !opts.DisableRankedSearch {
		if err := s.setupRanked(ctx); err != nil {
			s.logger.Warn("ranked search unavailable, using substring search", "error", err)
		} else if s.probeRanked(ctx) {
			s.mode = SearchRanked
		}
	}

	s.logger.Info("memory store opened", "path", dbPath, "mode", s.mode.String())
	return s, nil
}

// SearchMode returns the search path fixed when the store was opened.
func (s *SQLiteStore) SearchMode() SearchMode {
	return s.mode
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// Add stores a memory, or refreshes the caller's active memory with the
// exact same text: created_at is reset, expiry recomputed from TTLDays and
// tags replaced only when p.Tags is non-nil.
func (s *SQLiteStore) Add(ctx context.Context, p AddParams) (int64, error) {
	if err := validateAdd(p); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.addTx(ctx, tx, p, s.now())
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add: %w", err)
	}
	return id, nil
}

func validateAdd(p AddParams) error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if p.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// addTx runs the lookup-then-write of Add inside tx. p must be valid.
func (s *SQLiteStore) addTx(ctx context.Context, tx *sql.Tx, p AddParams, now time.Time) (int64, error) {
	createdAt := model.FormatTime(now)
	expiresAt := model.FormatTimePtr(expiry.ComputeExpiry(now, p.TTLDays))

	tagsJSON, err := model.EncodeTags(p.Tags)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM memories
		 WHERE user_id = ? AND text = ? AND deleted_at IS NULL`,
		p.UserID, p.Text).Scan(&id)

	switch {
	case err == nil:
		if tagsJSON != nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE memories SET tags = ?, created_at = ?, expires_at = ? WHERE id = ?`,
				tagsJSON, createdAt, expiresAt, id)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE memories SET created_at = ?, expires_at = ? WHERE id = ?`,
				createdAt, expiresAt, id)
		}
		if err != nil {
			return 0, fmt.Errorf("refresh memory: %w", err)
		}
		s.logger.Debug("memory refreshed", "id", id, "user", p.UserID)

	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO memories (user_id, text, tags, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			p.UserID, p.Text, tagsJSON, createdAt, expiresAt)
		if err != nil {
			return 0, fmt.Errorf("insert memory: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert memory: %w", err)
		}
		s.logger.Debug("memory added", "id", id, "user", p.UserID)

	default:
		return 0, fmt.Errorf("lookup memory: %w", err)
	}
	return id, nil
}

// Delete soft-deletes the caller's active memories among ids. Unknown,
// foreign and already deleted ids are skipped.
func (s *SQLiteStore) Delete(ctx context.Context, userID string, ids []int64) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, model.FormatTime(s.now()), userID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`UPDATE memories SET deleted_at = ?
		WHERE user_id = ? AND deleted_at IS NULL AND id IN (%s)`, placeholders(len(ids)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("soft delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	s.logger.Debug("memories soft-deleted", "user", userID, "requested", len(ids), "deleted", n)
	return n, nil
}

// Purge hard-deletes every soft-deleted or expired memory. The FTS delete
// trigger drops the matching index entries in the same transaction.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, int64, error) {
	now := model.FormatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ranked := s.mode == SearchRanked
	var before int64
	if ranked {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories_fts_docsize`).Scan(&before); err != nil {
			return 0, 0, fmt.Errorf("count index entries: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE `+expiry.PurgeableSQL(""), now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("purge: %w", err)
	}

	indexed := deleted
	if ranked {
		var after int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories_fts_docsize`).Scan(&after); err != nil {
			return 0, 0, fmt.Errorf("count index entries: %w", err)
		}
		indexed = before - after
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit purge: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("memories purged", "deleted", deleted, "index_entries", indexed)
	}
	return deleted, indexed, nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const memoryColumns = `m.id, m.user_id, m.text, m.tags, m.created_at, m.expires_at, m.deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var tags, expiresAt, deletedAt sql.NullString
	var createdAt string

	if err := row.Scan(&m.ID, &m.UserID, &m.Text, &tags, &createdAt, &expiresAt, &deletedAt); err != nil {
		return m, fmt.Errorf("scan memory: %w", err)
	}

	var err error
	if m.CreatedAt, err = model.ParseTime(createdAt); err != nil {
		return m, err
	}
	if tags.Valid {
		if m.Tags, err = model.DecodeTags(&tags.String); err != nil {
			return m, err
		}
	}
	if m.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return m, err
	}
	if m.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return m, err
	}
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]model.Memory, error) {
	defer func() { _ = rows.Close() }()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan memories: %w", err)
	}
	return memories, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := model.ParseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
