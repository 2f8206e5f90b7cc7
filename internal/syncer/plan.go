package syncer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/starford/catalyst/internal/checksum"
	"github.com/starford/catalyst/internal/metadata"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/parser"
	"github.com/starford/catalyst/internal/vault"
)

// Plan describes what a sync of one file would do to one target.
type Plan struct {
	Outcome models.Outcome `json:"outcome"`
	// Diff is a line diff from the current destination to the note that
	// would be written. It is empty for unchanged notes.
	Diff string `json:"diff,omitempty"`
}

// PlanFile reports, per enabled target, whether path would be written or
// skipped. Nothing is created or written.
func (o *Orchestrator) PlanFile(root, path string, targets []models.SyncTarget, project string) (map[string]Plan, error) {
	note, err := o.Resolve(root, path)
	if err != nil {
		return nil, err
	}
	content, err := metadata.Compose(note.Metadata, note.Body)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Plan)
	var errs []error
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		v, err := vault.New(t)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync: target %s: %w", t.Name, err))
			continue
		}
		dest, existing, err := locate(v, note, project)
		if err != nil {
			out[t.Name] = Plan{Outcome: models.Failed(err)}
			continue
		}
		if existing != nil {
			if _, body, _ := parser.Split(existing); checksum.Body(body) == note.Metadata.Checksum {
				out[t.Name] = Plan{Outcome: models.Skipped(dest)}
				continue
			}
		}
		out[t.Name] = Plan{Outcome: models.Written(dest), Diff: LineDiff(string(existing), string(content))}
	}
	return out, errors.Join(errs...)
}

// PlanDirectory plans every note under root. Notes that cannot be read or
// parsed get a failed plan for each enabled target.
func (o *Orchestrator) PlanDirectory(root string, targets []models.SyncTarget, project string) (map[string]map[string]Plan, error) {
	events, err := o.Scan(root)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]Plan, len(events))
	var errs []error
	for _, ev := range events {
		plans, err := o.PlanFile(ev.Root, ev.Path, targets, project)
		if plans == nil {
			plans = make(map[string]Plan)
			for _, t := range targets {
				if t.Enabled {
					plans[t.Name] = Plan{Outcome: models.Failed(err)}
				}
			}
		} else if err != nil {
			errs = append(errs, err)
		}
		out[ev.Path] = plans
	}
	return out, errors.Join(errs...)
}

// LineDiff renders a line-oriented diff with "+", "-" and " " prefixes.
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
