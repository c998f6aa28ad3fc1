// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rcliao/recall/internal/model"
)

const (
	// DefaultTopK is the result cap callers use when they have no preference.
	DefaultTopK = 5
	// MaxTopK bounds a single search regardless of what the caller asks for.
	MaxTopK = 100

	defaultBusyTimeout = 5 * time.Second
)

var (
	// ErrEmptyUserID is returned by Add when no user id is given.
	ErrEmptyUserID = errors.New("user id is required")
	// ErrEmptyText is returned by Add when the memory text is empty.
	ErrEmptyText = errors.New("text is required")
)

// SearchMode is the execution path Search uses for the lifetime of a store.
type SearchMode int

const (
	// SearchSubstring matches with LIKE and orders by recency.
	SearchSubstring SearchMode = iota
	// SearchRanked matches through the FTS5 index and orders by BM25.
	SearchRanked
)

func (m SearchMode) String() string {
	switch m {
	case SearchRanked:
		return "ranked"
	case SearchSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// AddParams holds parameters for storing a memory.
type AddParams struct {
	UserID string
	Text   string
	// Tags replaces the stored tags when non-nil. On a refresh a nil slice
	// leaves existing tags untouched.
	Tags []string
	// TTLDays sets expiry relative to now. Zero or negative means no expiry,
	// which also clears any expiry on a refreshed memory.
	TTLDays int
}

// SearchParams holds parameters for searching memories.
type SearchParams struct {
	UserID string
	Query  string
	TopK   int
	// TagAny keeps memories carrying at least one of these tags. An empty
	// list disables the filter; an empty string only matches a stored ""
	// tag, so [""] usually matches nothing.
	TagAny         []string
	IncludeExpired bool
}

// Options configures a SQLiteStore.
type Options struct {
	Logger *slog.Logger

	// Now overrides the clock. Values are converted to UTC and truncated to
	// the second.
	Now func() time.Time

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	// DisableRankedSearch skips the FTS5 index and forces substring search.
	DisableRankedSearch bool
}

// Store defines the memory storage interface.
type Store interface {
	// Add stores a memory or refreshes an identical active one.
	// Returns the memory id.
	Add(ctx context.Context, p AddParams) (int64, error)

	// Search returns the caller's visible memories matching the query.
	Search(ctx context.Context, p SearchParams) ([]model.Memory, error)

	// Delete soft-deletes the caller's active memories among ids and
	// returns how many changed.
	Delete(ctx context.Context, userID string, ids []int64) (int64, error)

	// Purge hard-deletes soft-deleted and expired memories for all users.
	// Returns the rows removed and the number of index entries dropped.
	Purge(ctx context.Context) (int64, int64, error)

	// Close closes the store.
	Close() error
}
