package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether expr is a schedule the Scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}
	return nil
}

// entry is a registered job plus its in-flight flag.
type entry struct {
	job     Job
	running atomic.Bool
}

// tick runs the job unless the previous run is still going. A purge sweep
// deletes every purgeable row at the time it runs, so a dropped tick is
// covered by the next one. Reports whether the job ran.
func (e *entry) tick(ctx context.Context, logger *slog.Logger) bool {
	if !e.running.CompareAndSwap(false, true) {
		logger.Warn("cron: previous run still in progress, skipping tick", "job", e.job.Name())
		return false
	}
	defer e.running.Store(false)

	start := time.Now()
	if err := e.job.Run(ctx); err != nil {
		logger.Error("cron: job failed", "job", e.job.Name(), "error", err, "duration", time.Since(start))
	} else {
		logger.Debug("cron: job completed", "job", e.job.Name(), "duration", time.Since(start))
	}
	return true
}

// Scheduler runs registered jobs on their cron schedules. A job never
// overlaps with itself.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	logger  *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// RegisterJob adds a job. Job names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.entries[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Start schedules every registered job. Nothing is scheduled if any job has
// an invalid expression. Cancelling happens in Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New(cron.WithParser(parser))
	ctx, cancel := context.WithCancel(context.Background())

	for _, name := range s.order {
		e := s.entries[name]
		if _, err := c.AddFunc(e.job.Schedule(), func() { e.tick(ctx, s.logger) }); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron, s.cancel = c, cancel
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	s.cancel()
	done := s.cron.Stop().Done()
	s.cron = nil

	select {
	case <-done:
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: stop: %w", ctx.Err())
	}
}
