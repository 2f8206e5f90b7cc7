// Package internal wires the catalyst pipeline and runs its commands.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/classifier"
	"github.com/starford/catalyst/internal/mcpserver"
	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/metrics"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/notify"
	"github.com/starford/catalyst/internal/syncer"
	"github.com/starford/catalyst/internal/watcher"
)

// metricsFlushInterval is how often watch mode rewrites the metrics textfile.
const metricsFlushInterval = 15 * time.Second

// App is the wired pipeline shared by every command.
type App struct {
	cfg        *Config
	logger     *slog.Logger
	broker     *notify.Broker
	extractor  *metadata.Extractor
	classifier *classifier.Classifier
	metrics    *metrics.Metrics
	syncer     *syncer.Orchestrator
}

// New builds the pipeline from the given options. A config is required.
func New(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		// stderr keeps stdout free for command output and the MCP stdio transport.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}

	cls, err := classifier.Load(cfg.Classifier.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		broker:     app.broker,
		extractor:  metadata.NewExtractor(),
		classifier: cls,
		metrics:    metrics.New(),
	}

	syncOpts := []syncer.Option{
		syncer.WithLogger(logger),
		syncer.WithMetrics(a.metrics),
		syncer.WithWorkers(cfg.Sync.Workers),
		syncer.WithWriteRate(cfg.Sync.MaxWritesPerSecond),
		syncer.WithExtensions(cfg.Watch.Extensions),
		syncer.WithIgnoreFile(cfg.Watch.IgnoreFile),
	}
	if a.broker != nil {
		syncOpts = append(syncOpts, syncer.WithPublisher(a.broker))
	}
	a.syncer = syncer.New(a.extractor, cls, syncOpts...)

	logger.Debug("Configuration loaded",
		slog.String("project", cfg.Project.Name),
		slog.String("root", cfg.Project.Root),
		slog.Int("targets", len(cfg.Sync.Enabled())),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return a, nil
}

// MCPServer builds an MCP server over the app's pipeline.
func (a *App) MCPServer() *mcpserver.Server {
	return mcpserver.New(a.extractor, a.classifier, a.syncer,
		mcpserver.WithRoot(a.cfg.Project.Root),
		mcpserver.WithProject(a.cfg.Project.Name),
		mcpserver.WithTargets(a.cfg.Sync.Enabled()),
		mcpserver.WithLogger(a.logger),
	)
}

// Run watches the configured paths and syncs every change until ctx is done
// or the process receives SIGINT or SIGTERM. Notes already present are synced
// once before live events are consumed.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg
	if !cfg.Sync.AutoSync {
		return fmt.Errorf("watch: %w", apperr.ErrAutoSyncDisabled)
	}

	targets := cfg.Sync.Enabled()
	project := cfg.Project.Name

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := watcher.New(cfg.Watch.Paths, a.watcherOptions()...)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	// Live events queue up in the watcher while the startup pass runs, so a
	// note touched during the scan is synced again rather than missed.
	var existing []watcher.Event
	if err := w.ProcessExistingFiles(ctx, func(ev watcher.Event) {
		existing = append(existing, ev)
	}); err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch: startup scan: %w", err)
	}
	if _, err := a.syncer.SyncBatch(ctx, existing, targets, project); err != nil {
		a.logger.Warn("watch: startup sync finished with target errors", slog.String("error", err.Error()))
	}

	scheduler, err := a.newScheduler(ctx, targets, project)
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.syncer.Consume(gCtx, w.Events(), targets, project)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if scheduler != nil {
		g.Go(func() error {
			scheduler.Start()
			<-gCtx.Done()
			if err := scheduler.Shutdown(); err != nil {
				a.logger.Error("watch: scheduler shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("watch: received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}

		cancel()
		return w.Stop()
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("watch: stopped with error", slog.String("error", err.Error()))
		return err
	}

	a.flushMetrics()
	a.logger.Info("watch: stopped")
	return nil
}

func (a *App) watcherOptions() []watcher.Option {
	opts := []watcher.Option{
		watcher.WithLogger(a.logger),
		watcher.WithMetrics(a.metrics),
		watcher.WithDebounce(a.cfg.Watch.Debounce),
		watcher.WithExtensions(a.cfg.Watch.Extensions),
		watcher.WithIgnoreFile(a.cfg.Watch.IgnoreFile),
	}
	if a.broker != nil {
		opts = append(opts, watcher.WithPublisher(a.broker))
	}
	return opts
}

// newScheduler registers the periodic rescan and metrics flush jobs. It
// returns nil when neither is configured.
func (a *App) newScheduler(ctx context.Context, targets []models.SyncTarget, project string) (gocron.Scheduler, error) {
	rescan := a.cfg.Watch.RescanInterval
	textfile := a.cfg.Metrics.TextfilePath
	if rescan <= 0 && textfile == "" {
		return nil, nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if rescan > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(rescan),
			gocron.NewTask(func() { a.rescan(ctx, targets, project) }),
			gocron.WithName("rescan"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("schedule rescan: %w", err)
		}
	}

	if textfile != "" {
		if _, err := s.NewJob(
			gocron.DurationJob(metricsFlushInterval),
			gocron.NewTask(a.flushMetrics),
			gocron.WithName("metrics"),
		); err != nil {
			return nil, fmt.Errorf("schedule metrics flush: %w", err)
		}
	}

	return s, nil
}

// rescan reconciles every watch path, catching changes the watcher missed.
func (a *App) rescan(ctx context.Context, targets []models.SyncTarget, project string) {
	for _, p := range a.cfg.Watch.Paths {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.syncer.SyncDirectory(ctx, p, targets, project); err != nil {
			a.logger.Warn("watch: rescan failed",
				slog.String("path", p),
				slog.String("error", err.Error()))
		}
	}
}

func (a *App) flushMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		a.logger.Warn("metrics: flush failed", slog.String("error", err.Error()))
	}
}
