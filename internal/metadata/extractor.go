// Package metadata derives KnowledgeMetadata from Markdown notes and composes
// the header written to sync destinations.
package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/checksum"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/parser"
)

const (
	titleLimit   = 50
	untitled     = "Untitled"
	maxSuggested = 5
)

// Document is a parsed note: its metadata, its body and the raw header.
type Document struct {
	Metadata  *models.KnowledgeMetadata
	Header    map[string]any
	HasHeader bool
	Body      string
}

// Extractor turns note files into metadata. It is safe for concurrent use.
type Extractor struct {
	keywords KeywordTable
	now      func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithKeywords replaces the tag inference table.
func WithKeywords(k KeywordTable) Option {
	return func(e *Extractor) { e.keywords = k }
}

// WithClock sets the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExtractor creates an Extractor with the default keyword table.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{keywords: DefaultKeywords(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract reads path and returns its metadata.
func (e *Extractor) Extract(path string) (*models.KnowledgeMetadata, error) {
	doc, err := e.Parse(path)
	if err != nil {
		return nil, err
	}
	return doc.Metadata, nil
}

// Parse reads path and returns the full parsed document.
func (e *Extractor) Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("metadata: %w: %s", apperr.ErrNotFound, path)
		}
		return nil, fmt.Errorf("metadata: read %s: %w", path, err)
	}
	doc, err := e.FromBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", path, err)
	}
	return doc, nil
}

// FromBytes builds a Document from raw note content. path is recorded as the
// source path and is not read.
func (e *Extractor) FromBytes(path string, data []byte) (*Document, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	now := e.now()
	h := res.Header
	meta := &models.KnowledgeMetadata{
		Title:           resolveTitle(h, res.Heading, res.FirstLine),
		Created:         parseTime(h["created"], now),
		Updated:         parseTime(h["updated"], now),
		Version:         versionField(h["version"]),
		Category:        stringField(h, "category"),
		Subcategory:     stringField(h, "subcategory"),
		Complexity:      stringField(h, "complexity"),
		Model:           stringField(h, "model"),
		Confidence:      stringField(h, "confidence"),
		SuccessRate:     successRate(h["success_rate"]),
		Purpose:         stringField(h, "purpose"),
		Project:         stringField(h, "project"),
		RelatedProjects: headerStrings(h["related_projects"]),
		Status:          statusField(h["status"]),
		Quality:         stringField(h, "quality"),
		Author:          stringField(h, "author"),
		Checksum:        checksum.Body(res.Body),
	}
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			meta.SourcePath = abs
		} else {
			meta.SourcePath = path
		}
	}

	raw := headerStrings(h["tags"])
	raw = append(raw, res.Tags...)
	raw = append(raw, e.keywords.Infer(res.Body)...)
	meta.Tags = NormalizeTags(raw)

	return &Document{
		Metadata:  meta,
		Header:    h,
		HasHeader: res.HasHeader,
		Body:      res.Body,
	}, nil
}

// SuggestTags returns up to five inferred tags for content that are not in existing.
func (e *Extractor) SuggestTags(content string, existing []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, t := range NormalizeTags(existing) {
		have[t] = struct{}{}
	}
	var out []string
	for _, t := range e.keywords.Infer(content) {
		if _, ok := have[t]; ok {
			continue
		}
		out = append(out, t)
		if len(out) == maxSuggested {
			break
		}
	}
	return out
}

func resolveTitle(h map[string]any, heading, firstLine string) string {
	if t := stringField(h, "title"); t != "" {
		return t
	}
	if heading != "" {
		return heading
	}
	if firstLine != "" {
		return truncate(firstLine, titleLimit)
	}
	return untitled
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

func stringField(h map[string]any, key string) string {
	v, ok := h[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func versionField(v any) string {
	switch x := v.(type) {
	case nil:
		return models.DefaultVersion
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
		return models.DefaultVersion
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x) + ".0"
	}
	return fmt.Sprint(v)
}

func statusField(v any) string {
	s, _ := v.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	if models.IsValidStatus(s) {
		return s
	}
	return models.StatusDraft
}

// successRate accepts 85, "85" or "85%". Values outside 0..100 are dropped.
func successRate(v any) *int {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case float64:
		n = int(math.Round(x))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(x), "%"))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 || n > 100 {
		return nil
	}
	return &n
}
