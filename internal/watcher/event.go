package watcher

import "path/filepath"

// Kind classifies a delivered event.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	// KindExisting marks files found by ProcessExistingFiles.
	KindExisting Kind = "existing"
)

// Event is one debounced change to a knowledge note.
type Event struct {
	Kind Kind
	// Path is absolute.
	Path string
	// Root is the watch path Path was found under.
	Root string
}

// Rel returns Path relative to Root, slash-separated.
func (e Event) Rel() string {
	rel, err := filepath.Rel(e.Root, e.Path)
	if err != nil {
		return filepath.ToSlash(e.Path)
	}
	return filepath.ToSlash(rel)
}

// State is the watcher lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateWatching
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateWatching:
		return "watching"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}
