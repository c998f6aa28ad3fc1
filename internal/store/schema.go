package store

import (
	"context"
	"fmt"
)

// schemaStatements create the primary table and its indexes.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		id          INTEGER PRIMARY KEY,
		user_id     TEXT NOT NULL,
		text        TEXT NOT NULL,
		tags        TEXT,
		created_at  TEXT NOT NULL,
		expires_at  TEXT,
		deleted_at  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mem_user ON memories(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_mem_active ON memories(deleted_at, expires_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_mem_dedup ON memories(user_id, text) WHERE deleted_at IS NULL`,
}

// ftsStatements create the ranked index and the triggers mirroring
// memories.text into it.
var ftsStatements = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		text,
		content='memories',
		content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, text) VALUES (new.id, new.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.id, old.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE OF text ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, text) VALUES ('delete', old.id, old.text);
		INSERT INTO memories_fts(rowid, text) VALUES (new.id, new.text);
	END`,
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// setupRanked creates the FTS5 index and its triggers in one transaction.
// An index created over existing rows is rebuilt from the content table.
func (s *SQLiteStore) setupRanked(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'memories_fts'`,
	).Scan(&existed); err != nil {
		return err
	}

	for _, stmt := range ftsStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if existed == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts(memories_fts) VALUES ('rebuild')`); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// probeRanked reports whether the ranked index is queryable.
func (s *SQLiteStore) probeRanked(ctx context.Context) bool {
	rows, err := s.db.QueryContext(ctx, `SELECT 1 FROM memories_fts LIMIT 1`)
	if err != nil {
		return false
	}
	_ = rows.Close()
	return true
}
