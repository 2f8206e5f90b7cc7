// Package storage defines the file-system abstraction used for source trees
// and vault directories.
package storage

import (
	"io/fs"

	"github.com/starford/catalyst/internal/models"
)

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves path (relative to root) to an absolute path, rejecting traversal.
	Abs(path string) (string, error)
	// List returns matching files under dir (relative to root), sorted by path.
	List(dir string, opts ListOptions) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Exists reports whether a file exists at path (relative to root).
	Exists(path string) (bool, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}

// ListOptions filters a listing.
type ListOptions struct {
	// Extensions restricts results to these suffixes, e.g. ".md". Empty means ".md".
	Extensions []string
	// Skip excludes an absolute path. Skipping a directory prunes it.
	Skip func(path string, d fs.DirEntry) bool
	// OnError is told about entries below dir that could not be read. They
	// are left out and the listing continues.
	OnError func(path string, err error)
}
