package internal

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/notify"
	tu "github.com/starford/catalyst/internal/testutil"
)

const retryNote = `---
title: Retry budgets
category: code
subcategory: go
---

Use a token bucket.
`

func testApp(t *testing.T, files map[string]string, opts ...Option) (*App, string) {
	t.Helper()
	src := tu.SourceTree(t, files)

	cfg := NewDefaultConfig()
	cfg.Project.Root = src
	cfg.Watch.Paths = []string{src}
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Sync.Targets = []models.SyncTarget{
		{Name: "main", Kind: models.TargetKindObsidian, Path: filepath.Join(t.TempDir(), "vault"), Enabled: true},
		{Name: "off", Kind: models.TargetKindFile, Path: filepath.Join(t.TempDir(), "off")},
	}
	require.NoError(t, cfg.Validate())

	opts = append([]Option{
		WithConfig(cfg),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	app, err := New(opts...)
	require.NoError(t, err)
	return app, src
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestNew_BadRulesFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Classifier.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(WithConfig(cfg), WithLogger(slog.New(slog.DiscardHandler)))
	assert.Error(t, err)
}

func TestSync(t *testing.T) {
	app, src := testApp(t, map[string]string{
		"retry.md":          retryNote,
		"commands/build.md": "#!/bin/bash\nmake\n",
	})
	ctx := context.Background()

	reports, err := app.Sync(ctx, SyncRequest{})
	require.NoError(t, err)
	require.Contains(t, reports, "main")
	assert.NotContains(t, reports, "off", "disabled targets are not synced")
	w, _, _ := reports["main"].Counts()
	assert.Equal(t, 2, w)

	reports, err = app.Sync(ctx, SyncRequest{File: filepath.Join(src, "retry.md"), Target: "main"})
	require.NoError(t, err)
	oc := reports["main"][filepath.Join(src, "retry.md")]
	assert.Equal(t, models.OutcomeSkipped, oc.Status)

	_, err = app.Sync(ctx, SyncRequest{Target: "off"})
	assert.ErrorIs(t, err, apperr.ErrUnknownTarget)
}

func TestSync_FileLandsWhereDirectorySyncDoes(t *testing.T) {
	app, _ := testApp(t, nil)
	// Directories above the project root must not steer classification.
	root := filepath.Join(t.TempDir(), "debug", "kb")
	tu.WriteNote(t, root, "plain.md", "groceries: milk\n")
	app.cfg.Project.Root = root
	path := filepath.Join(root, "plain.md")
	want := filepath.Join(app.cfg.Sync.Targets[0].Path, "20_Knowledge_Base", "Concepts", "Development_Patterns", "plain.md")
	ctx := context.Background()

	got, err := app.Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, want, got.Destinations["main"])

	plans, err := app.Plan(SyncRequest{File: path})
	require.NoError(t, err)
	assert.Equal(t, want, plans[path]["main"].Outcome.Destination)

	single, err := app.Sync(ctx, SyncRequest{File: path})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWritten, single["main"][path].Status)
	assert.Equal(t, want, single["main"][path].Destination)

	all, err := app.Sync(ctx, SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, all["main"][path].Status)
	assert.Equal(t, want, all["main"][path].Destination)
}

func TestSync_WritesMetricsTextfile(t *testing.T) {
	app, _ := testApp(t, map[string]string{"retry.md": retryNote})
	textfile := filepath.Join(t.TempDir(), "catalyst.prom")
	app.cfg.Metrics.TextfilePath = textfile

	_, err := app.Sync(context.Background(), SyncRequest{})
	require.NoError(t, err)
	assert.Contains(t, tu.ReadFile(t, textfile), "catalyst_sync_outcomes_total")
}

func TestPlan(t *testing.T) {
	app, src := testApp(t, map[string]string{"retry.md": retryNote})

	plans, err := app.Plan(SyncRequest{})
	require.NoError(t, err)
	p := plans[filepath.Join(src, "retry.md")]["main"]
	assert.Equal(t, models.OutcomeWritten, p.Outcome.Status)
	assert.Contains(t, p.Diff, "+title: Retry budgets")
	assert.NoDirExists(t, app.cfg.Sync.Targets[0].Path)

	plans, err = app.Plan(SyncRequest{File: filepath.Join(src, "retry.md")})
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestClassify_Preview(t *testing.T) {
	app, _ := testApp(t, map[string]string{
		"retry.md":          retryNote,
		"commands/build.md": "#!/bin/bash\nmake\n",
		"bad.md":            "---\ntitle: [unclosed\n---\n",
	})

	report, err := app.Classify(context.Background(), ClassifyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []string{"retry.md"}, report.WithMetadata)
	require.Len(t, report.Previews, 1)
	assert.Equal(t, "commands/build.md", report.Previews[0].Path)
	assert.Equal(t, models.CategoryCommand, report.Previews[0].Classification.Category)
	assert.Contains(t, report.Failures, "bad.md")
	assert.Empty(t, report.Applied)
}

func TestClassify_Apply(t *testing.T) {
	app, src := testApp(t, map[string]string{
		"commands/deploy_checklist.md": "#!/bin/bash\nmake release\n",
	})
	path := filepath.Join(src, "commands", "deploy_checklist.md")

	report, err := app.Classify(context.Background(), ClassifyRequest{Apply: true, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"commands/deploy_checklist.md"}, report.Applied)

	assert.Equal(t, "#!/bin/bash\nmake release\n", tu.ReadFile(t, path+backupSuffix))
	doc, err := app.extractor.Parse(path)
	require.NoError(t, err)
	assert.True(t, doc.HasHeader)
	assert.Equal(t, "Deploy Checklist", doc.Metadata.Title)
	assert.Equal(t, string(models.CategoryCommand), doc.Metadata.Category)
	assert.Equal(t, "#!/bin/bash\nmake release\n", doc.Body)

	// The rewritten note now carries a header and is left alone.
	report, err = app.Classify(context.Background(), ClassifyRequest{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"commands/deploy_checklist.md"}, report.WithMetadata)
	assert.Empty(t, report.Applied)
}

func TestClassify_ApplyKeepsExistingBackup(t *testing.T) {
	app, src := testApp(t, map[string]string{
		"commands/run.md":        "#!/bin/bash\nmake run\n",
		"commands/run.md.backup": "first original\n",
	})

	_, err := app.Classify(context.Background(), ClassifyRequest{Apply: true, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, "first original\n", tu.ReadFile(t, filepath.Join(src, "commands", "run.md"+backupSuffix)))
}

func TestClassify_HeaderWithoutCategoryNeedsClassification(t *testing.T) {
	app, src := testApp(t, map[string]string{
		"loose.md": "---\ntitle: Loose ends\ntags: [misc]\n---\n\nA documentation guide.\n",
	})
	path := filepath.Join(src, "loose.md")

	report, err := app.Classify(context.Background(), ClassifyRequest{Apply: true})
	require.NoError(t, err)
	assert.Empty(t, report.WithMetadata)
	require.Len(t, report.Previews, 1)
	assert.Equal(t, "loose.md", report.Previews[0].Path)
	assert.Equal(t, models.CategoryResource, report.Previews[0].Classification.Category)
	assert.Equal(t, []string{"loose.md"}, report.Applied)

	doc, err := app.extractor.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Loose ends", doc.Metadata.Title, "existing header fields are kept")
	assert.Equal(t, string(models.CategoryResource), doc.Metadata.Category)
	assert.Contains(t, doc.Metadata.Tags, "misc")

	// Sync agrees: the header now places the note without classification.
	analysis, err := app.Analyze(path)
	require.NoError(t, err)
	assert.Nil(t, analysis.Classification)
}

func TestTitleFromName(t *testing.T) {
	tests := map[string]string{
		"retry_budgets-v2.md": "Retry Budgets V2",
		"notes.md":            "Notes",
		"---.md":              "Untitled",
	}
	for in, want := range tests {
		assert.Equal(t, want, TitleFromName(in), in)
	}
}

func TestAnalyze(t *testing.T) {
	app, src := testApp(t, map[string]string{"retry.md": retryNote})

	got, err := app.Analyze(filepath.Join(src, "retry.md"))
	require.NoError(t, err)
	assert.Nil(t, got.Classification)
	assert.Equal(t, "Retry budgets", got.Metadata.Title)
	dest := got.Destinations["main"]
	assert.True(t, strings.HasPrefix(dest, app.cfg.Sync.Targets[0].Path))
	assert.Equal(t, "retry.md", filepath.Base(dest))
	assert.NotContains(t, got.Destinations, "off")

	_, err = app.Analyze(filepath.Join(src, "missing.md"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStatus(t *testing.T) {
	app, src := testApp(t, nil)

	st := app.Status()
	assert.True(t, st.Root.Exists)
	assert.True(t, st.AutoSync)
	require.Len(t, st.WatchPaths, 1)
	assert.Equal(t, src, st.WatchPaths[0].Path)
	require.Len(t, st.Targets, 2)
	assert.False(t, st.Targets[0].Exists)

	_, err := app.Sync(context.Background(), SyncRequest{})
	require.NoError(t, err)
	assert.True(t, app.Status().Targets[0].Exists)
}

func TestRun_AutoSyncDisabled(t *testing.T) {
	app, _ := testApp(t, nil)
	app.cfg.Sync.AutoSync = false
	err := app.Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAutoSyncDisabled)
}

func TestRun_BadWatchPath(t *testing.T) {
	app, _ := testApp(t, nil)
	app.cfg.Watch.Paths = []string{filepath.Join(t.TempDir(), "missing")}
	err := app.Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrWatchPath)
}

func TestRun_WatchesAndSyncs(t *testing.T) {
	broker := notify.NewBroker(0)
	defer broker.Close()
	app, src := testApp(t, map[string]string{"retry.md": retryNote}, WithBroker(broker))
	vaultRoot := app.cfg.Sync.Targets[0].Path

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	existing := filepath.Join(vaultRoot, "20_Knowledge_Base", "Code_Snippets", "go", "retry.md")
	tu.Eventually(t, 5*time.Second, func() bool {
		_, err := os.Stat(existing)
		return err == nil
	}, "existing note not synced at startup")

	tu.WriteNote(t, src, "debug/crash_issue.md", "stack trace here\n")
	live := filepath.Join(vaultRoot, "20_Knowledge_Base", "Project_Logs", "General", "crash_issue.md")
	tu.Eventually(t, 5*time.Second, func() bool {
		_, err := os.Stat(live)
		return err == nil
	}, "live note not synced")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var kinds []notify.Kind
drain:
	for {
		select {
		case n := <-sub:
			kinds = append(kinds, n.Kind)
		default:
			break drain
		}
	}
	assert.Contains(t, kinds, notify.WatcherStarted)
	assert.Contains(t, kinds, notify.SyncWritten)
}

func TestRun_Rescan(t *testing.T) {
	app, src := testApp(t, nil)
	app.cfg.Watch.RescanInterval = 100 * time.Millisecond

	// Ignored by the watcher and the rescan alike.
	tu.WriteNote(t, src, ".catalystignore", "drafts/\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	tu.WriteNote(t, src, "drafts/wip.md", "half done\n")
	tu.WriteNote(t, src, "guide.md", "A documentation guide.\n")
	dest := filepath.Join(app.cfg.Sync.Targets[0].Path, "20_Knowledge_Base", "Resources", "Documentation", "guide.md")
	tu.Eventually(t, 5*time.Second, func() bool {
		_, err := os.Stat(dest)
		return err == nil
	}, "note not synced")

	cancel()
	err := <-done
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
	_ = filepath.WalkDir(app.cfg.Sync.Targets[0].Path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.Name() == "wip.md" {
			t.Errorf("ignored note synced to %s", p)
		}
		return nil
	})
}
