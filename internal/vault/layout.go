package vault

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/starford/catalyst/internal/models"
)

// Layout is the folder convention of a target kind.
type Layout struct {
	Inbox     string
	Knowledge string
	Projects  string
	// Extra holds top-level folders created with the skeleton but never written to.
	Extra []string
	// Categories maps a category to its folder name.
	Categories map[models.Category]string
	// General is the folder used when a note has no subcategory.
	General string
}

// ObsidianLayout is the numbered folder convention used by Obsidian vaults.
func ObsidianLayout() Layout {
	return Layout{
		Inbox:     "00_Inbox",
		Projects:  "10_Projects",
		Knowledge: "20_Knowledge_Base",
		Extra:     []string{"30_Archive", "_templates", "_attachments"},
		Categories: map[models.Category]string{
			models.CategoryPrompt:     "Prompts",
			models.CategoryCode:       "Code_Snippets",
			models.CategoryConcept:    "Concepts",
			models.CategoryResource:   "Resources",
			models.CategoryCommand:    "Commands",
			models.CategoryProjectLog: "Project_Logs",
		},
		General: "General",
	}
}

// FileLayout is a plain lower-case convention for generic directory sinks.
func FileLayout() Layout {
	cats := make(map[models.Category]string, len(models.Categories))
	for _, c := range models.Categories {
		cats[c] = string(c)
	}
	return Layout{
		Inbox:      "inbox",
		Knowledge:  "knowledge",
		Projects:   "projects",
		Categories: cats,
		General:    "general",
	}
}

// LayoutFor returns the layout of a target kind.
func LayoutFor(kind string) (Layout, error) {
	switch kind {
	case models.TargetKindObsidian:
		return ObsidianLayout(), nil
	case models.TargetKindFile:
		return FileLayout(), nil
	}
	return Layout{}, fmt.Errorf("vault: unknown target kind %q", kind)
}

// Skeleton lists every directory created when a target is initialised.
func (l Layout) Skeleton() []string {
	dirs := []string{l.Inbox, l.Projects, l.Knowledge}
	dirs = append(dirs, l.Extra...)
	for _, c := range models.Categories {
		dirs = append(dirs, path.Join(l.Knowledge, l.Categories[c]))
	}
	return dirs
}

// Folder maps (category, subcategory, project) to a slash-separated folder
// relative to the vault root. The mapping is total: unknown categories land in
// the inbox.
func (l Layout) Folder(category, subcategory, project string) string {
	dir, ok := l.Categories[models.Category(strings.ToLower(strings.TrimSpace(category)))]
	if !ok {
		return l.Inbox
	}
	sub := Segment(subcategory)
	if project = Segment(project); project != "" {
		if sub == "" {
			return path.Join(l.Projects, project, dir)
		}
		return path.Join(l.Projects, project, dir, sub)
	}
	if sub == "" {
		sub = l.General
	}
	return path.Join(l.Knowledge, dir, sub)
}

// Segment makes s usable as a single path element. Separators and characters
// outside letters, digits, '-', '_', '.' and ' ' become '_'.
func Segment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '-', r == '_', r == '.', r == ' ':
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, ". ")
	return s
}
