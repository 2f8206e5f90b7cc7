package syncer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/catalyst/internal/models"
	tu "github.com/starford/catalyst/internal/testutil"
)

func TestPlanFile(t *testing.T) {
	src := tu.SourceTree(t, map[string]string{"retry.md": headerNote})
	target := obsidian(t, "main")
	targets := []models.SyncTarget{target}
	path := filepath.Join(src, "retry.md")
	o := newOrchestrator()

	plans, err := o.PlanFile(src, path, targets, "")
	require.NoError(t, err)
	p := plans["main"]
	assert.Equal(t, models.OutcomeWritten, p.Outcome.Status)
	assert.Contains(t, p.Diff, "+title: Retry budgets\n")
	assert.NoDirExists(t, target.Path, "planning must not create the vault")

	_, err = o.SyncFile(context.Background(), path, targets, "")
	require.NoError(t, err)

	plans, err = o.PlanFile(src, path, targets, "")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, plans["main"].Outcome.Status)
	assert.Empty(t, plans["main"].Diff)

	tu.WriteNote(t, src, "retry.md", headerNote+"More.\n")
	plans, err = o.PlanFile(src, path, targets, "")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWritten, plans["main"].Outcome.Status)
	assert.Contains(t, plans["main"].Diff, "+More.\n")
	assert.Contains(t, plans["main"].Diff, " Use a token bucket.\n")
}

func TestPlanDirectory(t *testing.T) {
	src := tu.SourceTree(t, map[string]string{
		"retry.md":  headerNote,
		"broken.md": "---\ntitle: [unclosed\n---\nbody\n",
		"skip.txt":  "not a note",
	})
	target := obsidian(t, "main")

	plans, err := newOrchestrator().PlanDirectory(src, []models.SyncTarget{target}, "")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, models.OutcomeWritten, plans[filepath.Join(src, "retry.md")]["main"].Outcome.Status)

	broken := plans[filepath.Join(src, "broken.md")]["main"]
	assert.Equal(t, models.OutcomeFailed, broken.Outcome.Status)
	assert.NotEmpty(t, broken.Outcome.Reason)
	assert.NoDirExists(t, target.Path)
}

func TestPlanDirectory_SameNameSources(t *testing.T) {
	src := tu.SourceTree(t, map[string]string{
		"alpha/notes.md": "groceries: milk\n",
		"beta/notes.md":  "groceries: eggs\n",
	})
	target := obsidian(t, "main")
	targets := []models.SyncTarget{target}
	o := newOrchestrator()

	synced, err := o.SyncDirectory(context.Background(), src, targets, "")
	require.NoError(t, err)

	plans, err := o.PlanDirectory(src, targets, "")
	require.NoError(t, err)
	for _, rel := range []string{"alpha/notes.md", "beta/notes.md"} {
		path := filepath.Join(src, filepath.FromSlash(rel))
		p := plans[path]["main"]
		assert.Equal(t, models.OutcomeSkipped, p.Outcome.Status, rel)
		assert.Equal(t, synced["main"][path].Destination, p.Outcome.Destination, rel)
	}
}

func TestLineDiff(t *testing.T) {
	got := LineDiff("a\nb\nc\n", "a\nB\nc\n")
	assert.Equal(t, " a\n-b\n+B\n c\n", got)
	assert.Empty(t, LineDiff("", ""))
	assert.Equal(t, "+x\n", LineDiff("", "x\n"))
	assert.True(t, strings.HasPrefix(LineDiff("old\n", ""), "-old"))
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	default:
	}
	unlockA()
	<-acquired
	<-released
	unlockB()
	assert.Zero(t, k.size())
}
