// Package parser splits Markdown notes into a YAML header and a body, and
// extracts headings and inline #tags from the body.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/starford/catalyst/internal/apperr"
)

// Delimiter is the marker line that opens and closes a header block.
const Delimiter = "---"

var tagRe = regexp.MustCompile(`(?:^|\s)#(\p{L}[\p{L}\p{N}_/-]*)`)

// Result holds the output of parsing a Markdown note.
type Result struct {
	Header    map[string]any
	HasHeader bool
	Body      string
	Tags      []string
	Heading   string
	FirstLine string
}

// Parse splits data into header and body. A header block that is present but
// not a valid YAML mapping yields an error wrapping apperr.ErrParse.
func Parse(data []byte) (*Result, error) {
	block, body, ok := Split(data)

	res := &Result{Body: body, HasHeader: ok}
	if ok {
		fm := map[string]any{}
		if err := yaml.Unmarshal(block, &fm); err != nil {
			return nil, fmt.Errorf("parser: %w: %w", apperr.ErrParse, err)
		}
		if fm == nil {
			fm = map[string]any{}
		}
		res.Header = fm
	}

	res.Tags = extractTags(body)
	res.Heading = firstHeading([]byte(body))
	res.FirstLine = firstLine(body)
	return res, nil
}

// Split separates a leading header block from the body. ok is false when the
// content does not open with a delimiter line or the block is never closed;
// the whole content is body then. The body never starts with blank lines.
func Split(data []byte) (header []byte, body string, ok bool) {
	content := strings.TrimPrefix(string(data), "\ufeff")
	trimmed := strings.TrimLeft(content, "\r\n")

	lines := strings.SplitAfter(trimmed, "\n")
	if len(lines) == 0 || !isDelimiter(lines[0]) {
		return nil, normalizeBody(content), false
	}

	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			block := strings.Join(lines[1:i], "")
			rest := strings.Join(lines[i+1:], "")
			return []byte(block), normalizeBody(rest), true
		}
	}
	// No closing delimiter: treat everything as body.
	return nil, normalizeBody(content), false
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r\n") == Delimiter
}

func normalizeBody(s string) string {
	return strings.TrimLeft(s, "\r\n")
}

// extractTags returns inline #tags in order of first appearance.
func extractTags(body string) []string {
	matches := tagRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// firstHeading returns the text of the first level-1 heading (ATX or setext).
// Headings inside code blocks are not headings and are ignored.
func firstHeading(body []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(body))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 1 {
			return ast.WalkContinue, nil
		}
		if t := strings.TrimSpace(inlineText(h, body)); t != "" {
			title = t
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// firstLine returns the first non-empty line that is not a heading.
func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return trimmed
	}
	return ""
}
