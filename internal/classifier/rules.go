package classifier

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/catalyst/internal/models"
)

// Match is the predicate side of a rule. It matches when any listed signal is
// present. A Match with no signals matches everything.
type Match struct {
	// Path holds substrings looked up in the lower-cased, slash-separated path.
	Path []string `yaml:"path,omitempty"`
	// Filename holds substrings looked up in the lower-cased base name.
	Filename []string `yaml:"filename,omitempty"`
	// Content holds keywords looked up in the lower-cased content.
	Content []string `yaml:"content,omitempty"`
}

func (m Match) empty() bool {
	return len(m.Path) == 0 && len(m.Filename) == 0 && len(m.Content) == 0
}

// Rule maps a predicate to a classification. When a rule has children, the
// first matching child decides the result and Result is the fallback for a
// rule match that no child claims.
type Rule struct {
	Name     string                      `yaml:"name"`
	When     Match                       `yaml:"when"`
	Result   models.ClassificationResult `yaml:"result"`
	Children []Rule                      `yaml:"children,omitempty"`
}

// Validate checks that the rule yields a category from the taxonomy.
func (r Rule) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	); err != nil {
		return err
	}
	if err := validateResult(r.Result); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	for _, c := range r.Children {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	return nil
}

// Table is an ordered rule list plus the default applied when nothing
// matches. An empty Fallback selects DefaultFallback.
type Table struct {
	Rules    []Rule                      `yaml:"rules"`
	Fallback models.ClassificationResult `yaml:"fallback"`
}

// Validate implements config.Validator.
func (t *Table) Validate() error {
	if len(t.Rules) == 0 {
		return fmt.Errorf("classifier: rules table is empty")
	}
	for _, r := range t.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
	}
	if t.Fallback.Category == "" {
		return nil
	}
	if err := validateResult(t.Fallback); err != nil {
		return fmt.Errorf("classifier: fallback: %w", err)
	}
	return nil
}

func validateResult(r models.ClassificationResult) error {
	if !r.Category.IsValid() {
		return fmt.Errorf("unknown category %q", r.Category)
	}
	return nil
}

func result(cat models.Category, sub string, tags []string, complexity, quality string) models.ClassificationResult {
	return models.ClassificationResult{
		Category:    cat,
		Subcategory: sub,
		Tags:        tags,
		Complexity:  complexity,
		Quality:     quality,
	}
}

// DefaultFallback is the classification used when no rule matches.
func DefaultFallback() models.ClassificationResult {
	return result(models.CategoryConcept, "Development_Patterns",
		[]string{"misc", "unclassified"}, models.ComplexityIntermediate, models.QualityMedium)
}

// DefaultTable returns the built-in rule table. Order is precedence.
func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{
				Name: "architecture",
				When: Match{
					Path:    []string{"architecture"},
					Content: []string{"アーキテクチャ", "architecture", "system design"},
				},
				Result: result(models.CategoryConcept, "Development_Patterns",
					[]string{"architecture", "design", "system", "structure"},
					models.ComplexityAdvanced, models.QualityHigh),
			},
			{
				Name: "commands",
				When: Match{Path: []string{"commands"}},
				Result: result(models.CategoryCommand, "scripts",
					[]string{"command", "automation", "workflow"},
					models.ComplexityBeginner, models.QualityMedium),
				Children: []Rule{
					{
						Name: "shell",
						When: Match{Content: []string{"#!/bin/bash", "bash", "shell", "git"}},
						Result: result(models.CategoryCommand, "slash_commands",
							[]string{"command", "shell", "automation", "script"},
							models.ComplexityIntermediate, models.QualityMedium),
					},
					{
						Name: "python",
						When: Match{Content: []string{"python", "uv run", "import"}},
						Result: result(models.CategoryCommand, "cli_tools",
							[]string{"command", "python", "automation", "script"},
							models.ComplexityIntermediate, models.QualityHigh),
					},
					{
						Name: "prompt",
						When: Match{Content: []string{"プロンプト", "prompt", "分類", "classification"}},
						Result: result(models.CategoryCommand, "automation",
							[]string{"command", "template", "classification", "automation"},
							models.ComplexityIntermediate, models.QualityHigh),
					},
				},
			},
			{
				Name: "debug",
				When: Match{
					Path:     []string{"debug"},
					Filename: []string{"issue"},
				},
				Result: result(models.CategoryProjectLog, "",
					[]string{"debug", "issue", "troubleshooting", "problem-solving"},
					models.ComplexityIntermediate, models.QualityMedium),
			},
			{
				Name: "documentation",
				When: Match{Content: []string{"documentation", "ドキュメント", "guide", "ガイド", "readme"}},
				Result: result(models.CategoryResource, "Documentation",
					[]string{"documentation", "guide", "reference", "manual"},
					models.ComplexityIntermediate, models.QualityHigh),
			},
			{
				Name: "concept",
				When: Match{Content: []string{"概念", "concept", "設計", "design", "考察", "戦略", "strategy", "改善"}},
				Result: result(models.CategoryConcept, "Development_Patterns",
					[]string{"concept", "development", "patterns", "theory"},
					models.ComplexityIntermediate, models.QualityHigh),
				Children: []Rule{
					{
						Name: "ai",
						When: Match{Content: []string{"ai", "claude", "llm", "machine learning", "人工知能"}},
						Result: result(models.CategoryConcept, "AI_Fundamentals",
							[]string{"concept", "ai", "claude", "fundamentals"},
							models.ComplexityAdvanced, models.QualityHigh),
					},
					{
						Name: "best-practices",
						When: Match{Content: []string{"best practice", "ベストプラクティス", "guideline", "standard"}},
						Result: result(models.CategoryConcept, "Best_Practices",
							[]string{"concept", "best-practices", "guidelines", "standards"},
							models.ComplexityIntermediate, models.QualityHigh),
					},
				},
			},
			{
				Name: "roadmap",
				When: Match{Content: []string{"roadmap", "ロードマップ", "planning", "計画", "feature"}},
				Result: result(models.CategoryResource, "Documentation",
					[]string{"roadmap", "planning", "features", "development"},
					models.ComplexityIntermediate, models.QualityHigh),
			},
		},
		Fallback: DefaultFallback(),
	}
}
