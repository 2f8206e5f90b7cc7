package metadata

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// NormalizeTag lower-cases and trims raw, joins inner whitespace with "-",
// and reports whether the result is a valid tag. Valid tags hold letters,
// digits, '-', '_' and '/' as a namespace separator.
func NormalizeTag(raw string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.TrimPrefix(t, "#")
	t = strings.Join(strings.Fields(t), "-")
	if t == "" {
		return "", false
	}
	if strings.HasPrefix(t, "/") || strings.HasSuffix(t, "/") || strings.Contains(t, "//") {
		return "", false
	}
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '/' {
			continue
		}
		return "", false
	}
	return t, true
}

// NormalizeTags normalises, de-duplicates and sorts raw. Invalid tags are dropped.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t, ok := NormalizeTag(r)
		if !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// headerStrings reads a header value that may be a YAML list or a
// comma-joined string.
func headerStrings(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return x
	}
	return []string{fmt.Sprint(v)}
}
