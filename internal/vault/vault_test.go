package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/models"
)

func TestObsidianDestination(t *testing.T) {
	v, err := New(models.SyncTarget{Name: "main", Kind: models.TargetKindObsidian, Path: t.TempDir()})
	require.NoError(t, err)

	cases := []struct {
		name    string
		meta    models.KnowledgeMetadata
		project string
		want    string
	}{
		{"knowledge with sub", models.KnowledgeMetadata{Category: "concept", Subcategory: "AI_Fundamentals"}, "", "20_Knowledge_Base/Concepts/AI_Fundamentals/n.md"},
		{"knowledge general", models.KnowledgeMetadata{Category: "project_log"}, "", "20_Knowledge_Base/Project_Logs/General/n.md"},
		{"project tree", models.KnowledgeMetadata{Category: "command", Subcategory: "cli_tools"}, "atlas", "10_Projects/atlas/Commands/cli_tools/n.md"},
		{"project from header", models.KnowledgeMetadata{Category: "code", Project: "beta"}, "", "10_Projects/beta/Code_Snippets/n.md"},
		{"argument wins over header", models.KnowledgeMetadata{Category: "code", Project: "beta"}, "atlas", "10_Projects/atlas/Code_Snippets/n.md"},
		{"unknown category", models.KnowledgeMetadata{Category: "poetry"}, "atlas", "00_Inbox/n.md"},
		{"empty category", models.KnowledgeMetadata{}, "", "00_Inbox/n.md"},
		{"case folded", models.KnowledgeMetadata{Category: " Resource ", Subcategory: "Documentation"}, "", "20_Knowledge_Base/Resources/Documentation/n.md"},
		{"unsafe sub", models.KnowledgeMetadata{Category: "code", Subcategory: "../etc"}, "", "20_Knowledge_Base/Code_Snippets/_etc/n.md"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := tc.meta
			assert.Equal(t, tc.want, v.Destination(&meta, tc.project, "n.md"))
		})
	}
}

func TestFileDestination(t *testing.T) {
	v, err := New(models.SyncTarget{Name: "plain", Kind: models.TargetKindFile, Path: t.TempDir()})
	require.NoError(t, err)

	meta := &models.KnowledgeMetadata{Category: "resource"}
	assert.Equal(t, "knowledge/resource/general/n.md", v.Destination(meta, "", "n.md"))
	assert.Equal(t, "projects/p/resource/n.md", v.Destination(meta, "p", "n.md"))
	assert.Equal(t, "inbox/n.md", v.Destination(&models.KnowledgeMetadata{}, "", "n.md"))
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(models.SyncTarget{Name: "x", Kind: "notion"})
	require.Error(t, err)
}

func TestInitialize_CreatesSkeleton(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := New(models.SyncTarget{Name: "main", Kind: models.TargetKindObsidian, Path: root})
	require.NoError(t, err)
	assert.Nil(t, v.Store())

	require.NoError(t, v.Initialize())
	require.NotNil(t, v.Store())

	for _, dir := range v.Layout().Skeleton() {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir)))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	assert.DirExists(t, filepath.Join(root, "20_Knowledge_Base", "Code_Snippets"))
	assert.DirExists(t, filepath.Join(root, "_templates"))

	// Idempotent.
	require.NoError(t, v.Initialize())
}

func TestInitialize_FailureWrapsSentinel(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	v, err := New(models.SyncTarget{Name: "broken", Kind: models.TargetKindFile, Path: filepath.Join(blocker, "vault")})
	require.NoError(t, err)

	err = v.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTargetInit))
	assert.Nil(t, v.Store())
}

func TestSegment(t *testing.T) {
	assert.Equal(t, "My Project", Segment("  My Project "))
	assert.Equal(t, "a_b", Segment("a/b"))
	assert.Equal(t, "", Segment(".."))
	assert.Equal(t, "設計", Segment("設計"))
}
