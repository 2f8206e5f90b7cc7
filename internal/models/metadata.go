// Package models defines the domain types for catalyst.
package models

import "time"

// Note status values.
const (
	StatusDraft      = "draft"
	StatusTested     = "tested"
	StatusProduction = "production"
	StatusDeprecated = "deprecated"
)

// DefaultVersion is applied when a header carries no version.
const DefaultVersion = "1.0"

// KnowledgeMetadata describes one note. It is rebuilt on every extraction.
type KnowledgeMetadata struct {
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Version string    `json:"version"`

	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Tags        []string `json:"tags"`
	Complexity  string   `json:"complexity,omitempty"`

	Model       string `json:"model,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
	SuccessRate *int   `json:"success_rate,omitempty"`

	Purpose         string   `json:"purpose,omitempty"`
	Project         string   `json:"project,omitempty"`
	RelatedProjects []string `json:"related_projects,omitempty"`

	Status  string `json:"status"`
	Quality string `json:"quality,omitempty"`

	Author     string `json:"author,omitempty"`
	SourcePath string `json:"source_path,omitempty"`

	// Checksum is derived from the body at extraction time and never read from a header.
	Checksum string `json:"checksum"`
}

// IsValidStatus reports whether s is one of the known note statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusTested, StatusProduction, StatusDeprecated:
		return true
	}
	return false
}
