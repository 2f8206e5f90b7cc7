// Package keyword implements the keyword membership tests shared by tag
// inference and content classification.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordLimit is the rune length at or below which a keyword must match a whole
// word. Short tokens such as "ai" or "js" otherwise hit inside unrelated words.
const wordLimit = 3

// Contains reports whether kw occurs in text. Callers fold case beforehand.
func Contains(text, kw string) bool {
	if kw == "" {
		return false
	}
	if utf8.RuneCountInString(kw) > wordLimit || !isWordish(kw) {
		return strings.Contains(text, kw)
	}
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], kw)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(kw)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		off = start + 1
	}
	return false
}

// Any reports whether text contains at least one of kws.
func Any(text string, kws []string) bool {
	for _, kw := range kws {
		if Contains(text, kw) {
			return true
		}
	}
	return false
}

func isWordish(s string) bool {
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}
