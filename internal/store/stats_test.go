package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/recall/internal/expiry"
	"github.com/rcliao/recall/internal/model"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	mustAdd(t, s, AddParams{UserID: "alice", Text: "hello"})
	mustAdd(t, s, AddParams{UserID: "alice", Text: "world"})
	mustAdd(t, s, AddParams{UserID: "alice", Text: "fleeting", TTLDays: 1})
	gone := mustAdd(t, s, AddParams{UserID: "bob", Text: "bye"})
	mustAdd(t, s, AddParams{UserID: "bob", Text: "test"})

	if _, err := s.Delete(ctx, "bob", []int64{gone}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	clock.Advance(25 * time.Hour)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 5 {
		t.Errorf("expected 5 total, got %d", stats.Total)
	}
	if stats.Active != 3 {
		t.Errorf("expected 3 active, got %d", stats.Active)
	}
	if stats.Expired != 1 {
		t.Errorf("expected 1 expired, got %d", stats.Expired)
	}
	if stats.SoftDeleted != 1 {
		t.Errorf("expected 1 soft-deleted, got %d", stats.SoftDeleted)
	}
	if stats.Purgeable != 2 {
		t.Errorf("expected 2 purgeable, got %d", stats.Purgeable)
	}
	if len(stats.Users) != 2 || stats.Users[0].UserID != "alice" || stats.Users[0].Active != 2 {
		t.Errorf("unexpected per-user stats: %+v", stats.Users)
	}
	if stats.SearchMode != "ranked" {
		t.Errorf("expected ranked mode, got %q", stats.SearchMode)
	}
	if stats.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clock := newClock()

	src := openTestStore(t, filepath.Join(dir, "src.db"), testOptions(clock))
	mustAdd(t, src, AddParams{UserID: "u", Text: "alpha", Tags: []string{"greek"}})
	mustAdd(t, src, AddParams{UserID: "u", Text: "beta", TTLDays: 10})
	gone := mustAdd(t, src, AddParams{UserID: "u", Text: "gamma"})
	mustAdd(t, src, AddParams{UserID: "other", Text: "delta"})
	if _, err := src.Delete(ctx, "u", []int64{gone}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	exported, err := src.ExportAll(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported, got %d", len(exported))
	}

	all, err := src.ExportAll(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 exported across users, got %d", len(all))
	}

	clock.Advance(36 * time.Hour)
	dst := openTestStore(t, filepath.Join(dir, "dst.db"), testOptions(clock))
	n, err := dst.Import(ctx, all)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 imported, got %d", n)
	}

	// Importing twice refreshes instead of duplicating.
	if _, err := dst.Import(ctx, all); err != nil {
		t.Fatal(err)
	}
	if c := countRows(t, dst, `SELECT COUNT(*) FROM memories`); c != 3 {
		t.Fatalf("expected 3 rows after re-import, got %d", c)
	}

	got, err := dst.Search(ctx, SearchParams{UserID: "u", Query: "alpha", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Tags) != 1 || got[0].Tags[0] != "greek" {
		t.Fatalf("expected tagged alpha, got %+v", got)
	}

	got, err = dst.Search(ctx, SearchParams{UserID: "u", Query: "beta", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	want := clock.Now().AddDate(0, 0, 9)
	if len(got) != 1 || got[0].ExpiresAt == nil || !got[0].ExpiresAt.Equal(want) {
		t.Fatalf("expected remaining ttl rounded up to %v, got %+v", want, got)
	}
}

func TestImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Import(ctx, []model.Memory{
		{ID: 1, UserID: "u", Text: "first"},
		{ID: 2, UserID: "u", Text: ""},
		{ID: 3, UserID: "u", Text: "third"},
	})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if c := countRows(t, s, `SELECT COUNT(*) FROM memories`); c != 0 {
		t.Fatalf("expected no rows after failed import, got %d", c)
	}
	checkIndexIntegrity(t, s)
}

func TestImportKeepsFarExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	far := expiry.MaxExpiry
	n, err := s.Import(ctx, []model.Memory{{ID: 9, UserID: "u", Text: "forever", ExpiresAt: &far}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 imported, got %d", n)
	}

	got, err := s.Search(ctx, SearchParams{UserID: "u", Query: "forever", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExpiresAt == nil || !got[0].ExpiresAt.Equal(far) {
		t.Fatalf("expected expiry %v to survive import, got %+v", far, got)
	}
}
