package metadata

import (
	"sort"
	"strings"

	"github.com/starford/catalyst/internal/keyword"
)

// KeywordTable drives tag inference. Keywords are matched against lower-cased
// content, except CodeMarkers which are matched verbatim.
type KeywordTable struct {
	Tech           map[string][]string `yaml:"tech"`
	Models         []string            `yaml:"models"`
	ModelNamespace string              `yaml:"model_namespace"`
	Prompt         []string            `yaml:"prompt"`
	CodeMarkers    []string            `yaml:"code_markers"`
}

// DefaultKeywords returns the built-in inference table.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		Tech: map[string][]string{
			"python":     {"python", "pip", "conda", "pytest", "django", "flask"},
			"javascript": {"javascript", "js", "node", "npm", "react", "vue"},
			"react":      {"react", "jsx", "component", "usestate", "useeffect"},
			"docker":     {"docker", "dockerfile", "container", "image"},
			"git":        {"git", "commit", "branch", "merge", "pull request"},
			"go":         {"golang", "go.mod", "goroutine"},
		},
		Models:         []string{"opus", "sonnet", "haiku"},
		ModelNamespace: "claude",
		Prompt:         []string{"prompt", "claude", "ai", "llm"},
		CodeMarkers:    []string{"```", "def ", "function ", "class "},
	}
}

// Infer returns the sorted set of tags suggested by content.
func (k KeywordTable) Infer(content string) []string {
	lower := strings.ToLower(content)
	set := make(map[string]struct{})

	for tag, kws := range k.Tech {
		if keyword.Any(lower, kws) {
			set[tag] = struct{}{}
		}
	}
	for _, m := range k.Models {
		if keyword.Contains(lower, m) {
			set[k.ModelNamespace+"/"+m] = struct{}{}
		}
	}
	if keyword.Any(lower, k.Prompt) {
		set["prompt"] = struct{}{}
	}
	for _, marker := range k.CodeMarkers {
		if strings.Contains(content, marker) {
			set["code"] = struct{}{}
			break
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
