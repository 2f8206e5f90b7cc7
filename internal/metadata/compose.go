package metadata

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/parser"
)

// destHeader fixes the key order of composed headers.
type destHeader struct {
	Title           string   `yaml:"title"`
	Created         string   `yaml:"created"`
	Updated         string   `yaml:"updated"`
	Version         string   `yaml:"version"`
	Category        string   `yaml:"category,omitempty"`
	Subcategory     string   `yaml:"subcategory,omitempty"`
	Tags            []string `yaml:"tags,omitempty"`
	Complexity      string   `yaml:"complexity,omitempty"`
	Quality         string   `yaml:"quality,omitempty"`
	Status          string   `yaml:"status"`
	Purpose         string   `yaml:"purpose,omitempty"`
	Project         string   `yaml:"project,omitempty"`
	RelatedProjects []string `yaml:"related_projects,omitempty"`
	Model           string   `yaml:"model,omitempty"`
	Confidence      string   `yaml:"confidence,omitempty"`
	SuccessRate     *int     `yaml:"success_rate,omitempty"`
	Author          string   `yaml:"author,omitempty"`
	Source          string   `yaml:"source,omitempty"`
}

// DefaultPurpose is the purpose recorded for notes that do not state one.
func DefaultPurpose(stem string) string {
	return "Auto-generated metadata for " + stem
}

// Compose renders meta as a header block followed by body. Splitting the
// result with parser.Split returns body unchanged.
func Compose(meta *models.KnowledgeMetadata, body string) ([]byte, error) {
	h := destHeader{
		Title:           meta.Title,
		Created:         meta.Created.Format(time.RFC3339),
		Updated:         meta.Updated.Format(time.RFC3339),
		Version:         meta.Version,
		Category:        meta.Category,
		Subcategory:     meta.Subcategory,
		Tags:            meta.Tags,
		Complexity:      meta.Complexity,
		Quality:         meta.Quality,
		Status:          meta.Status,
		Purpose:         meta.Purpose,
		Project:         meta.Project,
		RelatedProjects: meta.RelatedProjects,
		Model:           meta.Model,
		Confidence:      meta.Confidence,
		SuccessRate:     meta.SuccessRate,
		Author:          meta.Author,
		Source:          meta.SourcePath,
	}

	var buf bytes.Buffer
	buf.WriteString(parser.Delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("metadata: encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("metadata: encode header: %w", err)
	}
	buf.WriteString(parser.Delimiter + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
