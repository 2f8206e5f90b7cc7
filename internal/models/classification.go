package models

// Category is a top-level taxonomy bucket.
type Category string

// Fixed taxonomy.
const (
	CategoryPrompt     Category = "prompt"
	CategoryCode       Category = "code"
	CategoryConcept    Category = "concept"
	CategoryResource   Category = "resource"
	CategoryCommand    Category = "command"
	CategoryProjectLog Category = "project_log"
)

// Categories lists the taxonomy in canonical order.
var Categories = []Category{
	CategoryPrompt,
	CategoryCode,
	CategoryConcept,
	CategoryResource,
	CategoryCommand,
	CategoryProjectLog,
}

// IsValid reports whether c belongs to the fixed taxonomy.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Complexity levels.
const (
	ComplexityBeginner     = "beginner"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
)

// Quality levels.
const (
	QualityHigh         = "high"
	QualityMedium       = "medium"
	QualityLow          = "low"
	QualityExperimental = "experimental"
)

// Confidence markers attached to classified notes.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// ClassificationResult is produced for notes without a usable header.
type ClassificationResult struct {
	Category    Category `json:"category" yaml:"category"`
	Subcategory string   `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Tags        []string `json:"tags" yaml:"tags"`
	Complexity  string   `json:"complexity" yaml:"complexity"`
	Quality     string   `json:"quality" yaml:"quality"`

	// Rule names the rule that matched; empty when the default was applied.
	Rule string `json:"rule,omitempty" yaml:"-"`
}

// IsDefault reports whether no rule matched.
func (r ClassificationResult) IsDefault() bool {
	return r.Rule == ""
}
