// Package ignore matches paths against a gitignore-syntax file kept in a
// source root.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Filename is the default ignore file looked up in each root.
const Filename = ".catalystignore"

// Matcher reports whether paths below root are excluded.
type Matcher struct {
	root     string
	matcher  gitignore.Matcher
	patterns int
}

// Load reads filename from root. A missing file yields a matcher that
// excludes nothing. An empty filename selects Filename.
func Load(root, filename string) (*Matcher, error) {
	if filename == "" {
		filename = Filename
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ignore: resolve %s: %w", root, err)
	}

	patterns, err := parseFile(filepath.Join(abs, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ignore: %w", err)
	}
	return &Matcher{
		root:     abs,
		matcher:  gitignore.NewMatcher(patterns),
		patterns: len(patterns),
	}, nil
}

// Root returns the absolute root the patterns are relative to.
func (m *Matcher) Root() string { return m.root }

// Match reports whether path is excluded. Paths outside root never match.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil || m.patterns == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.matcher.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

// Skip adapts Match to storage.ListOptions.Skip.
func (m *Matcher) Skip(path string, d fs.DirEntry) bool {
	return m.Match(path, d.IsDir())
}

func parseFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return patterns, nil
}
