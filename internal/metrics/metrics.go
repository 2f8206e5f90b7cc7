// Package metrics holds the Prometheus collectors for sync, classification
// and watcher activity. Collectors live on a private registry so tests and
// multiple runs never collide, and are exported through a node-exporter
// textfile rather than an HTTP endpoint.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/starford/catalyst/internal/models"
)

const namespace = "catalyst"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	// Sync outcomes by target and status
	SyncOutcomes *prometheus.CounterVec
	// Batch sync latency
	SyncDuration prometheus.Histogram
	// Target initialisation failures by target
	TargetInitFailures *prometheus.CounterVec

	// Classifications by category and confidence
	Classifications *prometheus.CounterVec

	// Debounced watcher events by kind
	WatcherEvents *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		SyncOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_outcomes_total",
			Help:      "Per-file sync outcomes by target and status",
		}, []string{"target", "status"}),

		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_batch_duration_seconds",
			Help:      "Duration of directory sync runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		TargetInitFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_init_failures_total",
			Help:      "Sync target initialisation failures",
		}, []string{"target"}),

		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Notes classified by category and confidence",
		}, []string{"category", "confidence"}),

		WatcherEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_events_total",
			Help:      "Debounced file events delivered by the watcher",
		}, []string{"kind"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveOutcome counts one (file, target) sync outcome.
func (m *Metrics) ObserveOutcome(target string, status models.OutcomeStatus) {
	if m == nil {
		return
	}
	m.SyncOutcomes.WithLabelValues(target, string(status)).Inc()
}

// ObserveBatch records the duration of a directory sync.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(d.Seconds())
}

// ObserveTargetInitFailure counts a failed target initialisation.
func (m *Metrics) ObserveTargetInitFailure(target string) {
	if m == nil {
		return
	}
	m.TargetInitFailures.WithLabelValues(target).Inc()
}

// ObserveClassification counts a classifier result.
func (m *Metrics) ObserveClassification(res models.ClassificationResult) {
	if m == nil {
		return
	}
	confidence := models.ConfidenceHigh
	if res.IsDefault() {
		confidence = models.ConfidenceLow
	}
	m.Classifications.WithLabelValues(string(res.Category), confidence).Inc()
}

// ObserveWatcherEvent counts a delivered watcher event.
func (m *Metrics) ObserveWatcherEvent(kind string) {
	if m == nil {
		return
	}
	m.WatcherEvents.WithLabelValues(kind).Inc()
}

// WriteTextfile atomically writes all metrics in the text exposition format,
// for collection by the node exporter textfile collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
