package models

import (
	"sort"
	"time"
)

// Target kinds.
const (
	TargetKindObsidian = "obsidian"
	TargetKindFile     = "file"
)

// SyncTarget is a configured destination vault. The core reads it, never writes it.
type SyncTarget struct {
	Name    string `yaml:"name" json:"name"`
	Kind    string `yaml:"kind" json:"kind"`
	Path    string `yaml:"path" json:"path"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// OutcomeStatus is the result class of one (file, target) sync.
type OutcomeStatus string

const (
	OutcomeWritten OutcomeStatus = "written"
	OutcomeSkipped OutcomeStatus = "skipped-unchanged"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the per-file, per-target result.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Destination string        `json:"destination,omitempty"`
}

// Written returns a written outcome for dest.
func Written(dest string) Outcome { return Outcome{Status: OutcomeWritten, Destination: dest} }

// Skipped returns a skipped-unchanged outcome for dest.
func Skipped(dest string) Outcome { return Outcome{Status: OutcomeSkipped, Destination: dest} }

// Failed returns a failed outcome carrying err's message.
func Failed(err error) Outcome { return Outcome{Status: OutcomeFailed, Reason: err.Error()} }

// SyncReport maps a source file path to its outcome for one target.
type SyncReport map[string]Outcome

// Counts tallies outcomes by status.
func (r SyncReport) Counts() (written, skipped, failed int) {
	for _, o := range r {
		switch o.Status {
		case OutcomeWritten:
			written++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return written, skipped, failed
}

// Failures returns failed source paths in sorted order.
func (r SyncReport) Failures() []string {
	var out []string
	for p, o := range r {
		if o.Status == OutcomeFailed {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// TargetReports holds one SyncReport per target name.
type TargetReports map[string]SyncReport

// FileInfo is a lightweight listing entry.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
