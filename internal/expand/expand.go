// Package expand implements C4: a pure, deterministic rewrite of the raw
// user turn into a retrieval-biased query string, matching the static
// keyword table in spec.md §6 verbatim.
package expand

import "strings"

type rule struct {
	name       string
	triggers   []string
	expansion  string
}

// rules is reproduced verbatim from spec.md §6, in order; the last entry is
// the unconditional fallback.
var rules = []rule{
	{
		name:      "audience",
		triggers:  []string{"who are my", "my niche", "potential clients", "target audience", "ideal client"},
		expansion: "avatar sheet, ICP, ideal customer profile, demographics, psychographics",
	},
	{
		name:      "tone",
		triggers:  []string{"tone", "voice", "style", "how should i write"},
		expansion: "brand tone, voice, writing style, brand identity, brand vision",
	},
	{
		name:      "scripts",
		triggers:  []string{"script", "hook", "cta", "storytelling", "video", "reel"},
		expansion: "script structure, hook formulas, CTA, storytelling, retention",
	},
	{
		name:      "carousel",
		triggers:  []string{"carousel", "slides"},
		expansion: "carousel rules, slide structure, headline",
	},
	{
		name:      "content-strategy",
		triggers:  []string{"content strategy", "weekly", "ideas", "content plan", "what to post"},
		expansion: "content pillars, weekly planning, content calendar",
	},
	{
		name:      "competitor",
		triggers:  []string{"competitor", "rewrite", "in my voice"},
		expansion: "competitor adaptation, brand voice rewrite",
	},
	{
		name:      "personal",
		triggers:  []string{"tell me about yourself", "your story", "about you", "who are you"},
		expansion: "personal background, journey, transformation",
	},
	{
		name:      "brand-general",
		triggers:  []string{"brand", "identity", "philosophy", "positioning", "values"},
		expansion: "brand identity, philosophy, mission, values",
	},
}

// fallbackExpansion is appended when no rule's triggers match.
const fallbackExpansion = "brand documents, content strategy"

// Expand rewrites userText into an expanded retrieval query. It is pure,
// deterministic, and never removes or reorders the original text: the
// chosen expansion is appended after a single space.
func Expand(userText string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(userText), " "))

	for _, r := range rules {
		if matchesAny(normalized, r.triggers) {
			return userText + " " + r.expansion
		}
	}
	return userText + " " + fallbackExpansion
}

func matchesAny(normalized string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}
