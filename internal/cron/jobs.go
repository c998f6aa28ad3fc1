package cron

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultPurgeSchedule runs the purge sweep at the top of every hour.
const DefaultPurgeSchedule = "0 * * * *"

// Purger is the subset of store.Store needed by PurgeJob.
type Purger interface {
	Purge(ctx context.Context) (int64, int64, error)
}

// PurgeJob hard-deletes soft-deleted and expired memories.
type PurgeJob struct {
	Store        Purger
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultPurgeSchedule
}

// Compile-time interface check.
var _ Job = (*PurgeJob)(nil)

// Name implements Job.
func (j *PurgeJob) Name() string {
	return "memory_purge"
}

// Schedule implements Job.
func (j *PurgeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultPurgeSchedule
}

// Run performs one purge sweep. Each sweep gets a ULID so its log lines
// can be correlated.
func (j *PurgeJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: purge cancelled: %w", ctx.Err())
	}

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sweep := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	start := time.Now()

	deleted, indexed, err := j.Store.Purge(ctx)
	if err != nil {
		return fmt.Errorf("cron: purge sweep %s: %w", sweep, err)
	}

	logger.Info("cron: purge sweep finished",
		"sweep", sweep,
		"deleted", deleted,
		"index_entries", indexed,
		"duration", time.Since(start),
	)
	return nil
}
