package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIgnore(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}
}

func TestMatcherMissingFile(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Match(filepath.Join(dir, "anything.md"), false) {
		t.Error("missing ignore file should not match anything")
	}
}

func TestMatcherPatterns(t *testing.T) {
	dir := t.TempDir()
	writeIgnore(t, dir, "# drafts stay local\n*.tmp.md\nscratch/\n!scratch/keep.md\n")

	m, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"a.tmp.md", false, true},
		{"a.md", false, false},
		{"scratch", true, true},
		{"scratch/x.md", false, true},
		{"scratch/keep.md", false, false},
		{"notes/scratch.md", false, false},
		{"# drafts stay local", false, false},
	}
	for _, tc := range cases {
		got := m.Match(filepath.Join(dir, filepath.FromSlash(tc.path)), tc.isDir)
		if got != tc.want {
			t.Errorf("Match(%q, %v) = %v, want %v", tc.path, tc.isDir, got, tc.want)
		}
	}
}

func TestMatcherOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	writeIgnore(t, dir, "*.md\n")
	m, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Match(filepath.Join(filepath.Dir(dir), "other.md"), false) {
		t.Error("paths outside root must not match")
	}
	if m.Match(dir, true) {
		t.Error("root itself must not match")
	}
}

func TestMatcherCustomFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".notesignore"), []byte("private.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(dir, ".notesignore")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.Match(filepath.Join(dir, "private.md"), false) {
		t.Error("expected private.md to be ignored")
	}
}
