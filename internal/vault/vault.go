// Package vault maps classified notes onto a sync target's folder layout and
// owns the target's storage.
package vault

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/storage"
)

// Vault is one sync target.
type Vault struct {
	target models.SyncTarget
	layout Layout
	store  storage.Provider
}

// New creates a Vault for target. The directory is not touched until Initialize.
func New(target models.SyncTarget) (*Vault, error) {
	layout, err := LayoutFor(target.Kind)
	if err != nil {
		return nil, err
	}
	return &Vault{target: target, layout: layout}, nil
}

// Name returns the target name.
func (v *Vault) Name() string { return v.target.Name }

// Target returns the configured target.
func (v *Vault) Target() models.SyncTarget { return v.target }

// Layout returns the folder convention in use.
func (v *Vault) Layout() Layout { return v.layout }

// Initialize creates the vault root and its canonical skeleton. Errors wrap
// apperr.ErrTargetInit.
func (v *Vault) Initialize() error {
	if v.target.Path == "" {
		return fmt.Errorf("vault %s: %w: empty path", v.target.Name, apperr.ErrTargetInit)
	}
	root := filepath.Clean(v.target.Path)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("vault %s: %w: %w", v.target.Name, apperr.ErrTargetInit, err)
	}
	for _, dir := range v.layout.Skeleton() {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			return fmt.Errorf("vault %s: %w: %w", v.target.Name, apperr.ErrTargetInit, err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		return fmt.Errorf("vault %s: %w: %w", v.target.Name, apperr.ErrTargetInit, err)
	}
	v.store = store
	return nil
}

// Store returns the vault storage. It is nil before Initialize succeeds.
func (v *Vault) Store() storage.Provider { return v.store }

// Destination returns the slash-separated path, relative to the vault root, at
// which a note named name with meta is stored. project overrides meta.Project.
func (v *Vault) Destination(meta *models.KnowledgeMetadata, project, name string) string {
	if project == "" {
		project = meta.Project
	}
	return path.Join(v.layout.Folder(meta.Category, meta.Subcategory, project), Segment(name))
}
