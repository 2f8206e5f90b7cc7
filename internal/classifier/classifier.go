// Package classifier assigns a taxonomy category to notes that carry no
// usable header. Classification is a pure function of path and content.
package classifier

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/catalyst/internal/keyword"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/pkg/config"
)

// Classifier evaluates an ordered rule table. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	table Table
}

// New creates a Classifier over table.
func New(table Table) *Classifier {
	return &Classifier{table: table}
}

// NewDefault creates a Classifier over the built-in rules.
func NewDefault() *Classifier {
	return New(DefaultTable())
}

// Load reads a rule table from a YAML file. An empty filename selects the
// built-in table.
func Load(filename string) (*Classifier, error) {
	if filename == "" {
		return NewDefault(), nil
	}
	var t Table
	if err := config.Load(filename, &t); err != nil {
		return nil, err
	}
	if t.Fallback.Category == "" {
		t.Fallback = DefaultFallback()
	}
	return New(t), nil
}

// Classify maps path and content to a classification. The first matching rule
// wins; with no match the table fallback is returned.
func (c *Classifier) Classify(p, content string) models.ClassificationResult {
	in := input{
		path:    strings.ToLower(filepath.ToSlash(p)),
		content: strings.ToLower(content),
	}
	in.name = path.Base(in.path)

	for _, r := range c.table.Rules {
		if res, ok := evaluate(r, in, ""); ok {
			return res
		}
	}
	return clone(c.table.Fallback, "")
}

type input struct {
	path    string
	name    string
	content string
}

func evaluate(r Rule, in input, prefix string) (models.ClassificationResult, bool) {
	if !matches(r.When, in) {
		return models.ClassificationResult{}, false
	}
	name := prefix + r.Name
	for _, child := range r.Children {
		if res, ok := evaluate(child, in, name+"/"); ok {
			return res, true
		}
	}
	return clone(r.Result, name), true
}

func matches(m Match, in input) bool {
	if m.empty() {
		return true
	}
	for _, s := range m.Path {
		if strings.Contains(in.path, strings.ToLower(s)) {
			return true
		}
	}
	for _, s := range m.Filename {
		if strings.Contains(in.name, strings.ToLower(s)) {
			return true
		}
	}
	for _, kw := range m.Content {
		if keyword.Contains(in.content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// clone copies r so callers cannot mutate the shared tag slices.
func clone(r models.ClassificationResult, rule string) models.ClassificationResult {
	r.Tags = append([]string(nil), r.Tags...)
	r.Rule = rule
	return r
}
