package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/storage"
	"github.com/starford/catalyst/internal/syncer"
	"github.com/starford/catalyst/internal/watcher"
)

// backupSuffix is appended to a source note copied aside before its header is rewritten.
const backupSuffix = ".backup"

// SyncRequest selects what a sync or a plan covers.
type SyncRequest struct {
	// Root is the source directory; it defaults to project.root.
	Root string
	// File restricts the run to one note.
	File string
	// Target restricts the run to one enabled target.
	Target string
}

func (a *App) root(r string) string {
	if r == "" {
		return a.cfg.Project.Root
	}
	return r
}

// Sync writes the requested notes to the selected targets.
func (a *App) Sync(ctx context.Context, req SyncRequest) (models.TargetReports, error) {
	targets, err := a.cfg.Sync.Select(req.Target)
	if err != nil {
		return nil, err
	}
	defer a.flushMetrics()

	project := a.cfg.Project.Name
	if req.File == "" {
		return a.syncer.SyncDirectory(ctx, a.root(req.Root), targets, project)
	}

	ev := a.fileEvent(req.Root, req.File)
	var outcomes map[string]models.Outcome
	if ev.Root != "" {
		outcomes, err = a.syncer.HandleEvent(ctx, ev, targets, project)
	} else {
		outcomes, err = a.syncer.SyncFile(ctx, ev.Path, targets, project)
	}
	reports := make(models.TargetReports, len(outcomes))
	for name, oc := range outcomes {
		reports[name] = models.SyncReport{ev.Path: oc}
	}
	return reports, err
}

// Plan reports what Sync would do without writing anything. The result maps
// source path to target name to plan.
func (a *App) Plan(req SyncRequest) (map[string]map[string]syncer.Plan, error) {
	targets, err := a.cfg.Sync.Select(req.Target)
	if err != nil {
		return nil, err
	}

	project := a.cfg.Project.Name
	if req.File == "" {
		return a.syncer.PlanDirectory(a.root(req.Root), targets, project)
	}

	ev := a.fileEvent(req.Root, req.File)
	plans, err := a.syncer.PlanFile(ev.Root, ev.Path, targets, project)
	if plans == nil {
		return nil, err
	}
	return map[string]map[string]syncer.Plan{ev.Path: plans}, err
}

// fileEvent anchors a single note to the source root it lives under, so the
// classifier sees the same relative path a directory sync or the watcher
// would give it. Root is empty when the note is outside that root.
func (a *App) fileEvent(root, path string) watcher.Event {
	ev := watcher.Event{Kind: watcher.KindModified, Path: path}
	if abs, err := filepath.Abs(path); err == nil {
		ev.Path = abs
	}
	base, err := filepath.Abs(a.root(root))
	if err != nil {
		return ev
	}
	if rel, err := filepath.Rel(base, ev.Path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		ev.Root = base
	}
	return ev
}

// ClassifyRequest configures a batch classification run.
type ClassifyRequest struct {
	// Dir defaults to project.root.
	Dir string
	// Apply writes a composed header into every note that lacks one.
	Apply bool
	// Backup copies each note to <name>.backup before Apply rewrites it.
	Backup bool
}

// Preview is the classification a header-less note would receive.
type Preview struct {
	Path           string                      `json:"path"`
	Title          string                      `json:"title"`
	Classification models.ClassificationResult `json:"classification"`
	SuggestedTags  []string                    `json:"suggested_tags,omitempty"`
}

// ClassifyReport splits a tree into notes whose header already places them
// and notes that need classification.
type ClassifyReport struct {
	Dir          string            `json:"dir"`
	Scanned      int               `json:"scanned"`
	WithMetadata []string          `json:"with_metadata"`
	Previews     []Preview         `json:"previews"`
	Applied      []string          `json:"applied,omitempty"`
	Failures     map[string]string `json:"failures,omitempty"`
}

// Classify scans a tree and previews the classification of every note
// without a usable header, using the same test a sync applies. With Apply
// set, those notes get a composed header written in place.
func (a *App) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyReport, error) {
	dir := a.root(req.Dir)
	events, err := a.syncer.Scan(dir)
	if err != nil {
		return nil, err
	}

	report := &ClassifyReport{
		Dir:          dir,
		WithMetadata: []string{},
		Previews:     []Preview{},
		Failures:     map[string]string{},
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		rel := ev.Rel()

		doc, err := a.extractor.Parse(ev.Path)
		if err != nil {
			report.Failures[rel] = err.Error()
			continue
		}
		if syncer.Usable(doc) {
			report.WithMetadata = append(report.WithMetadata, rel)
			continue
		}

		res := a.classifier.Classify(rel, doc.Body)
		a.metrics.ObserveClassification(res)
		report.Previews = append(report.Previews, Preview{
			Path:           rel,
			Title:          doc.Metadata.Title,
			Classification: res,
			SuggestedTags:  a.extractor.SuggestTags(doc.Body, res.Tags),
		})

		if !req.Apply {
			continue
		}
		if err := a.apply(ev.Root, ev.Path, doc, req.Backup); err != nil {
			report.Failures[rel] = err.Error()
			continue
		}
		report.Applied = append(report.Applied, rel)
	}

	a.logger.Info("classify: completed",
		slog.String("dir", dir),
		slog.Int("scanned", report.Scanned),
		slog.Int("with_metadata", len(report.WithMetadata)),
		slog.Int("classified", len(report.Previews)),
		slog.Int("applied", len(report.Applied)),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}

// apply rewrites a note in place with a composed header. Fields of an
// existing header are kept; a missing title comes from the file name.
func (a *App) apply(root, path string, doc *metadata.Document, backup bool) error {
	note, err := a.syncer.Resolve(root, path)
	if err != nil {
		return err
	}
	meta := note.Metadata
	if doc.Header["title"] == nil {
		meta.Title = TitleFromName(filepath.Base(path))
	}
	if meta.Project == "" {
		meta.Project = a.cfg.Project.Name
	}

	content, err := metadata.Compose(meta, note.Body)
	if err != nil {
		return err
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(store.Root(), path)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if backup {
		if err := backupOnce(store, rel); err != nil {
			return err
		}
	}
	if err := store.Write(rel, content); err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	a.logger.Info("classify: header written", slog.String("path", path))
	return nil
}

// backupOnce copies rel to rel+backupSuffix unless a backup already exists,
// so the first original survives repeated runs.
func backupOnce(store storage.Provider, rel string) error {
	dst := rel + backupSuffix
	exists, err := store.Exists(dst)
	if err != nil {
		return fmt.Errorf("classify: backup: %w", err)
	}
	if exists {
		return nil
	}
	original, err := store.Read(rel)
	if err != nil {
		return err
	}
	if err := store.Write(dst, original); err != nil {
		return fmt.Errorf("classify: backup: %w", err)
	}
	return nil
}

// TitleFromName turns a note file name such as "retry_budgets-v2.md" into
// "Retry Budgets V2".
func TitleFromName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	if len(words) == 0 {
		return "Untitled"
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Analysis is the resolved view of one note.
type Analysis struct {
	Metadata *models.KnowledgeMetadata `json:"metadata"`
	// Classification is set when the note had no usable header.
	Classification *models.ClassificationResult `json:"classification,omitempty"`
	SuggestedTags  []string                     `json:"suggested_tags,omitempty"`
	// Destinations maps each enabled target to the note's path in it.
	Destinations map[string]string `json:"destinations"`
}

// Analyze resolves a single note the way a sync would, without writing.
func (a *App) Analyze(path string) (*Analysis, error) {
	ev := a.fileEvent("", path)
	note, err := a.syncer.Resolve(ev.Root, ev.Path)
	if err != nil {
		return nil, err
	}

	out := &Analysis{
		Metadata:       note.Metadata,
		Classification: note.Classification,
		SuggestedTags:  a.extractor.SuggestTags(note.Body, note.Metadata.Tags),
		Destinations:   map[string]string{},
	}
	for _, t := range a.cfg.Sync.Enabled() {
		dest, _, err := a.syncer.Locate(t, note, a.cfg.Project.Name)
		if err != nil {
			continue
		}
		out.Destinations[t.Name] = dest
	}
	return out, nil
}

// PathStatus reports whether a configured directory exists.
type PathStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// TargetStatus is a configured target with its directory's existence.
type TargetStatus struct {
	models.SyncTarget
	Exists bool `json:"exists"`
}

// StatusReport summarises the configuration and what exists on disk.
type StatusReport struct {
	Project    string         `json:"project,omitempty"`
	Root       PathStatus     `json:"root"`
	AutoSync   bool           `json:"auto_sync"`
	WatchPaths []PathStatus   `json:"watch_paths"`
	Targets    []TargetStatus `json:"targets"`
}

// Status reports the configured paths and targets.
func (a *App) Status() StatusReport {
	cfg := a.cfg
	st := StatusReport{
		Project:  cfg.Project.Name,
		Root:     pathStatus(cfg.Project.Root),
		AutoSync: cfg.Sync.AutoSync,
	}
	for _, p := range cfg.Watch.Paths {
		st.WatchPaths = append(st.WatchPaths, pathStatus(p))
	}
	for _, t := range cfg.Sync.Targets {
		st.Targets = append(st.Targets, TargetStatus{SyncTarget: t, Exists: pathStatus(t.Path).Exists})
	}
	return st
}

func pathStatus(p string) PathStatus {
	fi, err := os.Stat(p)
	return PathStatus{Path: p, Exists: err == nil && fi.IsDir()}
}
