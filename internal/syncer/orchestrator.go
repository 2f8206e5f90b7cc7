// Package syncer turns source notes into vault writes. It resolves metadata
// (falling back to classification), maps notes to destinations, skips
// unchanged bodies and reports per-file, per-target outcomes.
package syncer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/classifier"
	"github.com/starford/catalyst/internal/ignore"
	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/metrics"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/notify"
	"github.com/starford/catalyst/internal/storage"
	"github.com/starford/catalyst/internal/vault"
)

// DefaultWorkers bounds the parallelism of batch syncs.
const DefaultWorkers = 4

// Orchestrator syncs notes into vaults. It is safe for concurrent use: a
// batch sync and watcher-driven syncs may run at the same time, and writes to
// the same destination are serialised.
type Orchestrator struct {
	extractor  *metadata.Extractor
	classifier *classifier.Classifier

	logger     *slog.Logger
	metrics    *metrics.Metrics
	publisher  notify.Publisher
	limiter    *rate.Limiter
	workers    int
	extensions []string
	ignoreFile string

	locks keyedMutex

	initMu sync.Mutex
	vaults map[string]*vault.Vault
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records outcomes and classifications.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher receives per-file sync notifications.
func WithPublisher(p notify.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithWorkers sets how many files a batch syncs in parallel.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithWriteRate throttles vault writes to perSecond. Zero disables throttling.
func WithWriteRate(perSecond float64) Option {
	return func(o *Orchestrator) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithExtensions sets the note suffixes a batch sync picks up.
func WithExtensions(exts []string) Option {
	return func(o *Orchestrator) {
		if len(exts) > 0 {
			o.extensions = exts
		}
	}
}

// WithIgnoreFile sets the ignore file name looked up in a batch root.
func WithIgnoreFile(name string) Option {
	return func(o *Orchestrator) { o.ignoreFile = name }
}

// New creates an Orchestrator.
func New(extractor *metadata.Extractor, cls *classifier.Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:  extractor,
		classifier: cls,
		logger:     slog.New(slog.DiscardHandler),
		workers:    DefaultWorkers,
		extensions: []string{storage.DefaultExtension},
		ignoreFile: ignore.Filename,
		vaults:     make(map[string]*vault.Vault),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// prepare returns the initialised vaults of the enabled targets. A target
// that fails to initialise is left out and its error joined into the result;
// it is retried on the next call.
func (o *Orchestrator) prepare(targets []models.SyncTarget) ([]*vault.Vault, error) {
	o.initMu.Lock()
	defer o.initMu.Unlock()

	var (
		out  []*vault.Vault
		errs []error
	)
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if v, ok := o.vaults[t.Name]; ok && v.Target() == t {
			out = append(out, v)
			continue
		}

		v, err := vault.New(t)
		if err == nil {
			err = v.Initialize()
		}
		if err != nil {
			if !errors.Is(err, apperr.ErrTargetInit) {
				err = fmt.Errorf("%w: %w", apperr.ErrTargetInit, err)
			}
			o.metrics.ObserveTargetInitFailure(t.Name)
			o.logger.Warn("sync: target init failed",
				slog.String("target", t.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("sync: target %s: %w", t.Name, err))
			continue
		}

		o.logger.Info("sync: target initialized",
			slog.String("target", t.Name),
			slog.String("path", v.Store().Root()))
		o.vaults[t.Name] = v
		out = append(out, v)
	}
	return out, errors.Join(errs...)
}

func (o *Orchestrator) publish(n notify.Notification) {
	if o.publisher != nil {
		o.publisher.Publish(n)
	}
}
