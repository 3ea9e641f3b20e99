// Package format implements C6: a pure, deterministic rendering of a
// ContextBlock into the single textual block C7 prepends to its system
// prompt. No teacher file renders retrieval context directly — the shape
// here follows the teacher's own RAGService.Query prompt-assembly
// (internal/retrieval before its rewrite into C5) but reworked into the
// per-hit/per-section contract spec.md §4.6 specifies.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/northfieldai/ragcore/internal/domain"
)

const (
	defaultMaxChars = 16000
	perHitTextLimit = 1200
	ellipsis        = "…"
)

// Formatter renders ContextBlock values deterministically.
type Formatter struct {
	MaxChars int
}

// New builds a Formatter with the configured total-length ceiling.
func New(maxChars int) *Formatter {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Formatter{MaxChars: maxChars}
}

// Format renders block into a single string. Sections appear in a fixed
// order (Documents, Prior Messages, Global Patterns); empty sections are
// omitted. Hits are rendered highest-similarity-first (the order already
// carried by the ContextBlock); when the running total approaches
// MaxChars, later-ranked hits are dropped first, within a section and then
// across remaining sections.
func (f *Formatter) Format(block domain.ContextBlock) string {
	sections := []struct {
		header string
		hits   []domain.RetrievalHit
	}{
		{"# Documents", block.Documents},
		{"# Prior Messages", block.PriorMessages},
		{"# Global Patterns", block.GlobalPatterns},
	}

	var out strings.Builder
	budget := f.MaxChars

	for _, section := range sections {
		if len(section.hits) == 0 {
			continue
		}

		var body strings.Builder
		for i, hit := range section.hits {
			line := renderHit(i, hit) + "\n"
			if budget-out.Len()-body.Len()-len(section.header)-1 < len(line) {
				break
			}
			body.WriteString(line)
		}
		if body.Len() == 0 {
			continue
		}

		headerCost := len(section.header) + 1
		if budget-out.Len() < headerCost+body.Len() {
			continue
		}

		out.WriteString(section.header)
		out.WriteString("\n")
		out.WriteString(body.String())
		out.WriteString("\n")
	}

	return strings.TrimRight(out.String(), "\n")
}

func renderHit(index int, hit domain.RetrievalHit) string {
	text := hit.Text
	if runes := []rune(text); len(runes) > perHitTextLimit {
		text = string(runes[:perHitTextLimit]) + ellipsis
	}
	return fmt.Sprintf("[%d] source=%s similarity=%s %s",
		index, hit.Source, formatSimilarity(hit.Similarity), text)
}

func formatSimilarity(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}
