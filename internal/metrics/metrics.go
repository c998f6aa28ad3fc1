// Package metrics instruments a store.Store with Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/store"
)

const namespace = "recall"

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// InstrumentedStore wraps a store.Store and records operation counts,
// latencies and purge volumes on its own registry.
type InstrumentedStore struct {
	next store.Store

	registry     *prometheus.Registry
	ops          *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	results      prometheus.Histogram
	purged       *prometheus.CounterVec
	lastPurgeRun prometheus.Gauge
}

// Compile-time interface check.
var _ store.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps next. The returned registry also carries the
// Go runtime and process collectors.
func NewInstrumentedStore(next store.Store) *InstrumentedStore {
	reg := prometheus.NewRegistry()

	s := &InstrumentedStore{
		next:     next,
		registry: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of memories returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_total",
			Help:      "Rows removed by purge, by kind (memories or index_entries).",
		}, []string{"kind"}),
		lastPurgeRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_purge_timestamp_seconds",
			Help:      "Unix time of the last successful purge.",
		}),
	}

	reg.MustRegister(
		s.ops, s.duration, s.results, s.purged, s.lastPurgeRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Registry exposes the collectors, mainly for tests.
func (s *InstrumentedStore) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (s *InstrumentedStore) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() store.Store {
	return s.next
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.ops.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, store.ErrEmptyUserID), errors.Is(err, store.ErrEmptyText):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func (s *InstrumentedStore) Add(ctx context.Context, p store.AddParams) (int64, error) {
	start := time.Now()
	id, err := s.next.Add(ctx, p)
	s.observe("add", start, err)
	return id, err
}

func (s *InstrumentedStore) Search(ctx context.Context, p store.SearchParams) ([]model.Memory, error) {
	start := time.Now()
	out, err := s.next.Search(ctx, p)
	s.observe("search", start, err)
	if err == nil {
		s.results.Observe(float64(len(out)))
	}
	return out, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, userID string, ids []int64) (int64, error) {
	start := time.Now()
	n, err := s.next.Delete(ctx, userID, ids)
	s.observe("delete", start, err)
	return n, err
}

func (s *InstrumentedStore) Purge(ctx context.Context) (int64, int64, error) {
	start := time.Now()
	deleted, indexed, err := s.next.Purge(ctx)
	s.observe("purge", start, err)
	if err == nil {
		s.purged.WithLabelValues("memories").Add(float64(deleted))
		s.purged.WithLabelValues("index_entries").Add(float64(indexed))
		s.lastPurgeRun.SetToCurrentTime()
	}
	return deleted, indexed, err
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
