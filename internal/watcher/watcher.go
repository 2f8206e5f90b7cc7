// Package watcher observes source trees for knowledge-note changes and
// delivers debounced events on a channel.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/ignore"
	"github.com/starford/catalyst/internal/metrics"
	"github.com/starford/catalyst/internal/notify"
	"github.com/starford/catalyst/internal/storage"
)

// DefaultDebounce is the quiet period after which a burst of events for one
// path is delivered.
const DefaultDebounce = 400 * time.Millisecond

// Watcher watches one or more root directories recursively.
//
// Lifecycle: Stopped → Starting → Watching → Stopping → Stopped. Events are
// delivered on the channel returned by Events, which is closed when the
// session ends. Once Stop returns no further events are delivered.
type Watcher struct {
	paths      []string
	debounce   time.Duration
	extensions []string
	ignoreFile string
	logger     *slog.Logger
	publisher  notify.Publisher
	metrics    *metrics.Metrics

	state atomic.Int32

	mu     sync.Mutex // guards transitions and the session fields below
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the per-path quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions sets the note suffixes to surface.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		if len(exts) > 0 {
			w.extensions = exts
		}
	}
}

// WithIgnoreFile sets the ignore file name looked up in each root.
func WithIgnoreFile(name string) Option {
	return func(w *Watcher) { w.ignoreFile = name }
}

// WithPublisher receives lifecycle and event notifications.
func WithPublisher(p notify.Publisher) Option {
	return func(w *Watcher) { w.publisher = p }
}

// WithMetrics counts delivered events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// New creates a stopped watcher over paths.
func New(paths []string, opts ...Option) *Watcher {
	w := &Watcher{
		paths:      paths,
		debounce:   DefaultDebounce,
		extensions: []string{storage.DefaultExtension},
		ignoreFile: ignore.Filename,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Events returns the channel of the current session. It is nil before the
// first Start and closed once the session ends.
func (w *Watcher) Events() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

type root struct {
	path    string
	matcher *ignore.Matcher
}

// Start begins observing the configured paths. It fails with
// apperr.ErrAlreadyRunning unless the watcher is stopped, and with
// apperr.ErrWatchPath when a path is missing or not a directory. Cancelling
// ctx ends the session like Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("watcher: %w (state %s)", apperr.ErrAlreadyRunning, w.State())
	}

	roots, fsw, err := w.open()
	if err != nil {
		w.state.Store(int32(StateStopped))
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event)
	done := make(chan struct{})
	w.events, w.cancel, w.done = events, cancel, done

	w.state.Store(int32(StateWatching))
	go w.run(sessionCtx, fsw, roots, events, done)

	for _, r := range roots {
		w.logger.Info("watcher: started", slog.String("root", r.path))
	}
	w.publish(notify.Notification{Kind: notify.WatcherStarted, Detail: strings.Join(w.rootPaths(roots), ",")})
	return nil
}

func (w *Watcher) open() ([]root, *fsnotify.Watcher, error) {
	if len(w.paths) == 0 {
		return nil, nil, fmt.Errorf("watcher: %w: no paths configured", apperr.ErrWatchPath)
	}
	roots, err := w.resolveRoots()
	if err != nil {
		return nil, nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("watcher: %w", err)
	}
	for _, r := range roots {
		if err := w.addDirsRecursive(fsw, r, r.path); err != nil {
			_ = fsw.Close()
			return nil, nil, fmt.Errorf("watcher: %w: %s: %w", apperr.ErrWatchPath, r.path, err)
		}
	}
	return roots, fsw, nil
}

func (w *Watcher) resolveRoots() ([]root, error) {
	roots := make([]root, 0, len(w.paths))
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watcher: %w: %s: %w", apperr.ErrWatchPath, p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watcher: %w: %s: %w", apperr.ErrWatchPath, p, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("watcher: %w: %s is not a directory", apperr.ErrWatchPath, p)
		}
		m, err := ignore.Load(abs, w.ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("watcher: %w", err)
		}
		roots = append(roots, root{path: abs, matcher: m})
	}
	// Longest first so nested roots claim their own files.
	sort.Slice(roots, func(i, j int) bool { return len(roots[i].path) > len(roots[j].path) })
	return roots, nil
}

func (w *Watcher) rootPaths(roots []root) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.path
	}
	sort.Strings(out)
	return out
}

// Stop ends the session and waits for the loop to exit. It is safe to call
// in any state and returns nil when already stopped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.State() == StateStopped || w.done == nil {
		w.mu.Unlock()
		return nil
	}
	w.state.Store(int32(StateStopping))
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, roots []root, events chan Event, done chan struct{}) {
	deb := newDebouncer(w.debounce)
	defer func() {
		deb.stop()
		_ = fsw.Close()
		close(events)

		w.mu.Lock()
		w.state.Store(int32(StateStopped))
		w.mu.Unlock()

		w.logger.Info("watcher: stopped")
		w.publish(notify.Notification{Kind: notify.WatcherStopped})
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case f := <-deb.ready:
			ev, ok := deb.take(f)
			if !ok {
				continue
			}
			select {
			case events <- ev:
				w.metrics.ObserveWatcherEvent(string(ev.Kind))
				w.publish(notify.Notification{Kind: notify.WatcherEvent, Path: ev.Path, Detail: string(ev.Kind)})
			case <-ctx.Done():
				return
			}

		case fev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, roots, deb, fev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, roots []root, deb *debouncer, fev fsnotify.Event) {
	absPath := fev.Name
	r, ok := w.rootFor(roots, absPath)
	if !ok {
		return
	}

	// New directories: watch them and surface the notes already inside.
	if fev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(absPath); err == nil && info.IsDir() {
			if storage.IsHidden(filepath.Base(absPath)) || r.matcher.Match(absPath, true) {
				return
			}
			if err := w.addDirsRecursive(fsw, r, absPath); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", err.Error()))
				return
			}
			w.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			w.scanNewDir(ctx, r, deb, absPath)
			return
		}
	}

	if !w.accept(r, absPath) {
		return
	}

	var kind Kind
	switch {
	case fev.Op&fsnotify.Create != 0:
		kind = KindCreated
	case fev.Op&fsnotify.Write != 0:
		kind = KindModified
	case fev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// fsnotify reports Rename on the old path only; the new path
		// arrives as a separate Create.
		kind = KindDeleted
	default:
		return
	}
	w.logger.Debug("watcher: event", slog.String("path", absPath), slog.String("kind", string(kind)))
	deb.add(ctx, Event{Kind: kind, Path: absPath, Root: r.path})
}

func (w *Watcher) scanNewDir(ctx context.Context, r root, deb *debouncer, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && (storage.IsHidden(d.Name()) || r.matcher.Match(p, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.accept(r, p) {
			deb.add(ctx, Event{Kind: KindCreated, Path: p, Root: r.path})
		}
		return nil
	})
}

func (w *Watcher) accept(r root, absPath string) bool {
	name := filepath.Base(absPath)
	if storage.IsHidden(name) || !storage.HasExtension(name, w.extensions) {
		return false
	}
	rel, err := filepath.Rel(r.path, filepath.Dir(absPath))
	if err == nil && rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if storage.IsHidden(part) {
				return false
			}
		}
	}
	return !r.matcher.Match(absPath, false)
}

func (w *Watcher) rootFor(roots []root, absPath string) (root, bool) {
	for _, r := range roots {
		if absPath == r.path || strings.HasPrefix(absPath, r.path+string(filepath.Separator)) {
			return r, true
		}
	}
	return root{}, false
}

// addDirsRecursive adds dir and all its visible, non-ignored subdirectories.
func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, r root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != r.path && (storage.IsHidden(d.Name()) || r.matcher.Match(p, true)) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// ProcessExistingFiles calls fn once for every note under the configured
// paths, with kind KindExisting. It does not depend on the watcher state.
func (w *Watcher) ProcessExistingFiles(ctx context.Context, fn func(Event)) error {
	roots, err := w.resolveRoots()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, r := range roots {
		store, err := storage.NewFS(r.path)
		if err != nil {
			return fmt.Errorf("watcher: %w: %w", apperr.ErrWatchPath, err)
		}
		files, err := store.List("", storage.ListOptions{
			Extensions: w.extensions,
			Skip:       r.matcher.Skip,
			OnError: func(path string, err error) {
				w.logger.Warn("watcher: unreadable path skipped",
					slog.String("path", path),
					slog.String("error", err.Error()))
			},
		})
		if err != nil {
			return fmt.Errorf("watcher: scan %s: %w", r.path, err)
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(r.path, filepath.FromSlash(f.Path))
			// Nested roots list the same file twice.
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			fn(Event{Kind: KindExisting, Path: abs, Root: r.path})
		}
	}
	return nil
}

func (w *Watcher) publish(n notify.Notification) {
	if w.publisher != nil {
		w.publisher.Publish(n)
	}
}
