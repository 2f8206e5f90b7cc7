package syncer

import (
	"path/filepath"
	"strings"

	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/models"
)

// Note is a source file resolved for writing.
type Note struct {
	Metadata *models.KnowledgeMetadata
	Body     string
	// Classification is set when the header was missing or unusable.
	Classification *models.ClassificationResult
}

// Usable reports whether a note's header carries enough to place it without
// classification: a header with a valid category.
func Usable(doc *metadata.Document) bool {
	return doc.HasHeader && models.Category(strings.ToLower(doc.Metadata.Category)).IsValid()
}

// Resolve extracts metadata for path and, when the note has no usable header,
// fills category, subcategory, complexity and quality from the classifier.
// Header values always win over classified ones. root anchors the path
// signals the classifier sees; with an empty root the full path is used.
func (o *Orchestrator) Resolve(root, path string) (*Note, error) {
	doc, err := o.extractor.Parse(path)
	if err != nil {
		return nil, err
	}
	meta := doc.Metadata
	meta.Category = strings.ToLower(meta.Category)
	note := &Note{Metadata: meta, Body: doc.Body}
	if Usable(doc) {
		return note, nil
	}

	res := o.classifier.Classify(relPath(root, path), doc.Body)
	o.metrics.ObserveClassification(res)

	meta.Category = string(res.Category)
	if meta.Subcategory == "" {
		meta.Subcategory = res.Subcategory
	}
	if meta.Complexity == "" {
		meta.Complexity = res.Complexity
	}
	if meta.Quality == "" {
		meta.Quality = res.Quality
	}
	if meta.Confidence == "" {
		meta.Confidence = models.ConfidenceHigh
		if res.IsDefault() {
			meta.Confidence = models.ConfidenceLow
		}
	}
	if meta.Purpose == "" {
		meta.Purpose = metadata.DefaultPurpose(stem(path))
	}
	meta.Tags = metadata.NormalizeTags(append(meta.Tags, res.Tags...))

	note.Classification = &res
	return note, nil
}

func relPath(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
