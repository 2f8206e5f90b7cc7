package syncer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/checksum"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/parser"
	"github.com/starford/catalyst/internal/vault"
)

// candidates returns the vault paths note may occupy, preferred first. The
// plain file name is kept unless another source already holds it; the
// fallback carries a short hash of the source path.
func candidates(v *vault.Vault, note *Note, name, project string) []string {
	return []string{
		v.Destination(note.Metadata, project, name),
		v.Destination(note.Metadata, project, altName(name, note.Metadata.SourcePath)),
	}
}

// altName inserts the first 8 hex digits of the source path's hash before
// the extension: "notes.md" becomes "notes-1a2b3c4d.md".
func altName(name, source string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + checksum.Sum([]byte(source))[:8] + ext
}

// owner returns the source path recorded in a vault note's header, or ""
// when the note has no readable header.
func owner(content []byte) string {
	header, _, ok := parser.Split(content)
	if !ok {
		return ""
	}
	var h struct {
		Source string `yaml:"source"`
	}
	if err := yaml.Unmarshal(header, &h); err != nil {
		return ""
	}
	return h.Source
}

// ownedBy reports whether existing vault content may be replaced by a note
// from source. Notes without a recorded source are never claimed.
func ownedBy(existing []byte, source string) bool {
	return owner(existing) == source
}

func destinationTaken(name string) error {
	return fmt.Errorf("sync: %s: %w", name, apperr.ErrDestinationTaken)
}

// Locate returns the absolute path note would be written to in target and
// that file's current content (nil when absent). It reads the target
// directory directly, so the vault need not be initialised.
func (o *Orchestrator) Locate(target models.SyncTarget, note *Note, project string) (string, []byte, error) {
	v, err := vault.New(target)
	if err != nil {
		return "", nil, err
	}
	return locate(v, note, project)
}

func locate(v *vault.Vault, note *Note, project string) (string, []byte, error) {
	name := filepath.Base(note.Metadata.SourcePath)
	root := filepath.Clean(v.Target().Path)
	for _, rel := range candidates(v, note, name, project) {
		dest := filepath.Join(root, filepath.FromSlash(rel))
		existing, err := os.ReadFile(dest)
		switch {
		case err == nil:
			if !ownedBy(existing, note.Metadata.SourcePath) {
				continue
			}
			return dest, existing, nil
		case errors.Is(err, fs.ErrNotExist):
			return dest, nil, nil
		default:
			return dest, nil, err
		}
	}
	return "", nil, destinationTaken(name)
}
