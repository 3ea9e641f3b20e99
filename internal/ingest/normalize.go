package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// normalize folds Unicode width variants (full-width Latin, half-width
// katakana, etc.) to their canonical form — otherwise-unused surface area
// of the teacher's indirect golang.org/x/text dependency — then collapses
// runs of whitespace while preserving paragraph boundaries (double
// newlines), matching spec.md §4.3 step 2.
func normalize(text string) string {
	folded := width.Fold.String(text)

	paragraphs := strings.Split(folded, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = collapseWhitespace(p)
	}

	var kept []string
	for _, p := range paragraphs {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
