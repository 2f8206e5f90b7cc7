package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/catalyst/internal/checksum"
	"github.com/starford/catalyst/internal/ignore"
	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/notify"
	"github.com/starford/catalyst/internal/parser"
	"github.com/starford/catalyst/internal/storage"
	"github.com/starford/catalyst/internal/vault"
	"github.com/starford/catalyst/internal/watcher"
)

// SyncDirectory syncs every note under root to every enabled target and
// returns one report per initialised target. Per-file failures are recorded in
// the reports; the returned error only carries setup failures (an unreadable
// root, or targets that could not be initialised).
func (o *Orchestrator) SyncDirectory(ctx context.Context, root string, targets []models.SyncTarget, project string) (models.TargetReports, error) {
	events, err := o.Scan(root)
	if err != nil {
		return nil, err
	}
	return o.SyncBatch(ctx, events, targets, project)
}

// Scan lists the notes under root as existing-file events, honouring the
// extension filter and the root's ignore file.
func (o *Orchestrator) Scan(root string) ([]watcher.Event, error) {
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("sync: source root: %w", err)
	}
	matcher, err := ignore.Load(store.Root(), o.ignoreFile)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	files, err := store.List("", storage.ListOptions{
		Extensions: o.extensions,
		Skip:       matcher.Skip,
		OnError: func(path string, err error) {
			o.logger.Warn("sync: unreadable path skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	events := make([]watcher.Event, 0, len(files))
	for _, f := range files {
		events = append(events, watcher.Event{
			Kind: watcher.KindExisting,
			Path: filepath.Join(store.Root(), filepath.FromSlash(f.Path)),
			Root: store.Root(),
		})
	}
	return events, nil
}

// SyncBatch syncs events in parallel, bounded by the worker count. Delete
// events are skipped.
func (o *Orchestrator) SyncBatch(ctx context.Context, events []watcher.Event, targets []models.SyncTarget, project string) (models.TargetReports, error) {
	start := time.Now()
	runID := uuid.NewString()

	vaults, initErr := o.prepare(targets)
	reports := make(models.TargetReports, len(vaults))
	for _, v := range vaults {
		reports[v.Name()] = make(models.SyncReport, len(events))
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for _, ev := range events {
		if ev.Kind == watcher.KindDeleted {
			continue
		}
		g.Go(func() error {
			outcomes := o.syncOne(ctx, runID, ev.Root, ev.Path, vaults, project)
			mu.Lock()
			for name, oc := range outcomes {
				reports[name][ev.Path] = oc
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.metrics.ObserveBatch(time.Since(start))
	for name, r := range reports {
		written, skipped, failed := r.Counts()
		o.logger.Info("sync: completed",
			slog.String("run_id", runID),
			slog.String("target", name),
			slog.Int("written", written),
			slog.Int("skipped", skipped),
			slog.Int("failed", failed),
			slog.Duration("elapsed", time.Since(start)))
		o.publish(notify.Notification{
			Kind:   notify.SyncCompleted,
			Target: name,
			RunID:  runID,
			Detail: fmt.Sprintf("written=%d skipped=%d failed=%d", written, skipped, failed),
		})
	}
	return reports, initErr
}

// SyncFile syncs a single note to every enabled target. Classification path
// signals see the full path.
func (o *Orchestrator) SyncFile(ctx context.Context, path string, targets []models.SyncTarget, project string) (map[string]models.Outcome, error) {
	vaults, initErr := o.prepare(targets)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return o.syncOne(ctx, uuid.NewString(), "", abs, vaults, project), initErr
}

// HandleEvent syncs the file behind ev. Deleted sources are logged and left
// in the vaults.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev watcher.Event, targets []models.SyncTarget, project string) (map[string]models.Outcome, error) {
	if ev.Kind == watcher.KindDeleted {
		o.logger.Info("sync: source deleted, vault copies kept", slog.String("path", ev.Path))
		return nil, nil
	}
	vaults, initErr := o.prepare(targets)
	return o.syncOne(ctx, uuid.NewString(), ev.Root, ev.Path, vaults, project), initErr
}

// Consume handles events until the channel closes or ctx is done. Events are
// processed one at a time, in delivery order.
func (o *Orchestrator) Consume(ctx context.Context, events <-chan watcher.Event, targets []models.SyncTarget, project string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := o.HandleEvent(ctx, ev, targets, project); err != nil {
				o.logger.Warn("sync: event handled with target errors",
					slog.String("path", ev.Path),
					slog.String("error", err.Error()))
			}
		}
	}
}

// syncOne resolves path once and writes it to each vault.
func (o *Orchestrator) syncOne(ctx context.Context, runID, root, path string, vaults []*vault.Vault, project string) map[string]models.Outcome {
	out := make(map[string]models.Outcome, len(vaults))
	if len(vaults) == 0 {
		return out
	}

	fail := func(err error) map[string]models.Outcome {
		for _, v := range vaults {
			out[v.Name()] = models.Failed(err)
			o.record(runID, v.Name(), path, out[v.Name()])
		}
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	note, err := o.Resolve(root, path)
	if err != nil {
		return fail(err)
	}

	name := filepath.Base(path)
	for _, v := range vaults {
		oc := o.write(ctx, v, note, name, project)
		out[v.Name()] = oc
		o.record(runID, v.Name(), path, oc)
	}
	return out
}

// write stores note in v unless the destination already holds the same body.
// A destination written from another source is left alone and the next
// candidate name is tried.
func (o *Orchestrator) write(ctx context.Context, v *vault.Vault, note *Note, name, project string) models.Outcome {
	store := v.Store()
	for _, dest := range candidates(v, note, name, project) {
		abs, err := store.Abs(dest)
		if err != nil {
			return models.Failed(err)
		}
		if oc, claimed := o.writeAt(ctx, store, dest, abs, note); claimed {
			return oc
		}
		o.logger.Debug("sync: destination held by another source",
			slog.String("target", v.Name()),
			slog.String("destination", abs),
			slog.String("path", note.Metadata.SourcePath))
	}
	return models.Failed(destinationTaken(name))
}

// writeAt writes note to dest while holding its lock. claimed is false when
// dest belongs to another source.
func (o *Orchestrator) writeAt(ctx context.Context, store storage.Provider, dest, abs string, note *Note) (oc models.Outcome, claimed bool) {
	unlock := o.locks.Lock(abs)
	defer unlock()

	existing, err := store.Read(dest)
	switch {
	case err == nil:
		if !ownedBy(existing, note.Metadata.SourcePath) {
			return models.Outcome{}, false
		}
		if _, body, _ := parser.Split(existing); checksum.Body(body) == note.Metadata.Checksum {
			return models.Skipped(abs), true
		}
	case !errors.Is(err, fs.ErrNotExist):
		return models.Failed(err), true
	}

	content, err := metadata.Compose(note.Metadata, note.Body)
	if err != nil {
		return models.Failed(err), true
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return models.Failed(fmt.Errorf("sync: throttle: %w", err)), true
		}
	}
	if err := store.Write(dest, content); err != nil {
		return models.Failed(err), true
	}
	return models.Written(abs), true
}

func (o *Orchestrator) record(runID, target, path string, oc models.Outcome) {
	o.metrics.ObserveOutcome(target, oc.Status)

	n := notify.Notification{Target: target, Path: path, RunID: runID}
	switch oc.Status {
	case models.OutcomeWritten:
		n.Kind = notify.SyncWritten
		n.Detail = oc.Destination
		o.logger.Info("sync: written",
			slog.String("target", target),
			slog.String("path", path),
			slog.String("destination", oc.Destination))
	case models.OutcomeSkipped:
		n.Kind = notify.SyncSkipped
		n.Detail = oc.Destination
		o.logger.Debug("sync: unchanged",
			slog.String("target", target),
			slog.String("path", path))
	default:
		n.Kind = notify.SyncFailed
		n.Detail = oc.Reason
		o.logger.Warn("sync: write failed",
			slog.String("target", target),
			slog.String("path", path),
			slog.String("error", oc.Reason))
	}
	o.publish(n)
}
