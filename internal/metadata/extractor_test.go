package metadata

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/checksum"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/parser"
	"github.com/starford/catalyst/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(WithClock(func() time.Time { return fixedNow }))
}

func TestExtract_FullHeader(t *testing.T) {
	dir := t.TempDir()
	p := testutil.WriteNote(t, dir, "note.md", `---
title: Retry budgets
created: 2024-01-15
updated: 2024-02-01T09:30:00Z
version: 2.0
category: code
subcategory: Go
tags: [Resilience, go]
complexity: advanced
success_rate: 85
related_projects: alpha, beta
status: Production
author: ops
---

Body with #backoff mention.
`)

	meta, err := newTestExtractor().Extract(p)
	require.NoError(t, err)

	assert.Equal(t, "Retry budgets", meta.Title)
	assert.Equal(t, 2024, meta.Created.Year())
	assert.Equal(t, time.January, meta.Created.Month())
	assert.Equal(t, 15, meta.Created.Day())
	assert.True(t, meta.Updated.Equal(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2.0", meta.Version)
	assert.Equal(t, "code", meta.Category)
	assert.Equal(t, "Go", meta.Subcategory)
	assert.Equal(t, "advanced", meta.Complexity)
	require.NotNil(t, meta.SuccessRate)
	assert.Equal(t, 85, *meta.SuccessRate)
	assert.Equal(t, []string{"alpha", "beta"}, meta.RelatedProjects)
	assert.Equal(t, models.StatusProduction, meta.Status)
	assert.Equal(t, "ops", meta.Author)
	assert.Equal(t, []string{"backoff", "go", "resilience"}, meta.Tags)
	assert.Equal(t, checksum.Body("Body with #backoff mention.\n"), meta.Checksum)

	abs, _ := filepath.Abs(p)
	assert.Equal(t, abs, meta.SourcePath)
}

func TestExtract_NoHeaderDefaults(t *testing.T) {
	dir := t.TempDir()
	p := testutil.WriteNote(t, dir, "plain.md", "# Heading Title\n\nSome text.\n")

	meta, err := newTestExtractor().Extract(p)
	require.NoError(t, err)

	assert.Equal(t, "Heading Title", meta.Title)
	assert.True(t, meta.Created.Equal(fixedNow))
	assert.True(t, meta.Updated.Equal(fixedNow))
	assert.Equal(t, models.DefaultVersion, meta.Version)
	assert.Equal(t, models.StatusDraft, meta.Status)
	assert.Empty(t, meta.Category)
	assert.Nil(t, meta.SuccessRate)
}

func TestExtract_TagNormalization(t *testing.T) {
	e := NewExtractor(WithKeywords(KeywordTable{}))
	doc, err := e.FromBytes("", []byte("---\ntags: [\"Python\", \"python\", \" PYTHON \"]\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"python"}, doc.Metadata.Tags)
}

func TestExtract_CommaSeparatedTags(t *testing.T) {
	e := NewExtractor(WithKeywords(KeywordTable{}))
	doc, err := e.FromBytes("", []byte("---\ntags: \"Ops, machine learning, bad!tag\"\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"machine-learning", "ops"}, doc.Metadata.Tags)
}

func TestExtract_TitleFallbackTruncates(t *testing.T) {
	line := "Quick note about retries and backoff in sync clients!!"
	require.Equal(t, 54, len(line))

	doc, err := newTestExtractor().FromBytes("", []byte(line+"\nmore\n"))
	require.NoError(t, err)
	assert.Equal(t, line[:50]+"...", doc.Metadata.Title)
}

func TestExtract_TitleUntitled(t *testing.T) {
	doc, err := newTestExtractor().FromBytes("", []byte("---\ncategory: code\n---\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "Untitled", doc.Metadata.Title)
}

func TestExtract_UnparsableDatesFallBack(t *testing.T) {
	doc, err := newTestExtractor().FromBytes("", []byte("---\ncreated: someday\nupdated: 2024/05/06\n---\nx\n"))
	require.NoError(t, err)
	assert.True(t, doc.Metadata.Created.Equal(fixedNow))
	assert.Equal(t, time.May, doc.Metadata.Updated.Month())
	assert.Equal(t, 6, doc.Metadata.Updated.Day())
}

func TestExtract_InvalidStatusAndRate(t *testing.T) {
	doc, err := newTestExtractor().FromBytes("", []byte("---\nstatus: shipped\nsuccess_rate: 140\n---\nx\n"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, doc.Metadata.Status)
	assert.Nil(t, doc.Metadata.SuccessRate)

	doc, err = newTestExtractor().FromBytes("", []byte("---\nsuccess_rate: \"70%\"\n---\nx\n"))
	require.NoError(t, err)
	require.NotNil(t, doc.Metadata.SuccessRate)
	assert.Equal(t, 70, *doc.Metadata.SuccessRate)
}

func TestExtract_InferredTags(t *testing.T) {
	body := "Run pytest inside the docker container.\n\n```python\ndef main(): pass\n```\nWorks with Claude Opus.\n"
	doc, err := newTestExtractor().FromBytes("", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, []string{"claude/opus", "code", "docker", "prompt", "python"}, doc.Metadata.Tags)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := newTestExtractor().Extract(filepath.Join(t.TempDir(), "gone.md"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestExtract_MalformedHeader(t *testing.T) {
	p := testutil.WriteNote(t, t.TempDir(), "bad.md", "---\ntitle: [unclosed\n---\nbody\n")
	_, err := newTestExtractor().Extract(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrParse))
}

func TestExtract_ChecksumIgnoresHeader(t *testing.T) {
	e := newTestExtractor()
	a, err := e.FromBytes("", []byte("---\ntitle: A\n---\nsame body\n"))
	require.NoError(t, err)
	b, err := e.FromBytes("", []byte("---\ntitle: B\nstatus: tested\n---\n\nsame body\n"))
	require.NoError(t, err)
	c, err := e.FromBytes("", []byte("---\ntitle: A\n---\nsame body!\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Metadata.Checksum, b.Metadata.Checksum)
	assert.NotEqual(t, a.Metadata.Checksum, c.Metadata.Checksum)
}

func TestSuggestTags(t *testing.T) {
	e := newTestExtractor()
	got := e.SuggestTags("git commit inside a docker container with pytest and npm via claude", []string{"Docker"})
	assert.Equal(t, []string{"git", "javascript", "prompt", "python"}, got)

	many := "python docker git react npm claude sonnet ```"
	assert.Len(t, e.SuggestTags(many, nil), 5)
}

func TestCompose_RoundTrip(t *testing.T) {
	e := newTestExtractor()
	doc, err := e.FromBytes("/notes/a.md", []byte("---\ntitle: Round\ntags: [x]\n---\n\n\nBody line\n---\nafter rule\n"))
	require.NoError(t, err)

	out, err := Compose(doc.Metadata, doc.Body)
	require.NoError(t, err)

	_, body, ok := parser.Split(out)
	require.True(t, ok)
	assert.Equal(t, doc.Body, body)

	again, err := e.FromBytes("/notes/a.md", out)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata.Checksum, again.Metadata.Checksum)
	assert.Equal(t, "Round", again.Metadata.Title)
	assert.Equal(t, doc.Metadata.Tags, again.Metadata.Tags)
}

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"  Go ":       "go",
		"#Ops":        "ops",
		"claude/Opus": "claude/opus",
		"snake_case":  "snake_case",
	}
	for in, want := range cases {
		got, ok := NormalizeTag(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "   ", "a.b", "/lead", "trail/", "a//b"} {
		_, ok := NormalizeTag(bad)
		assert.False(t, ok, bad)
	}
}
