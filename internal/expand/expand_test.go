package expand

import (
	"strings"
	"testing"
)

func TestExpandMatchesFirstRule(t *testing.T) {
	got := Expand("Who are my ideal clients?")
	if !strings.Contains(got, "avatar sheet") {
		t.Fatalf("expected audience expansion, got %q", got)
	}
}

func TestExpandIsCaseInsensitive(t *testing.T) {
	got := Expand("WHAT TONE should I use for my brand VOICE")
	if !strings.Contains(got, "brand tone") {
		t.Fatalf("expected tone expansion despite casing, got %q", got)
	}
}

func TestExpandFirstMatchWins(t *testing.T) {
	// Matches both "audience" (target audience) and "tone" (voice) triggers;
	// audience is listed first and must win.
	got := Expand("what is my target audience and voice")
	if !strings.Contains(got, "avatar sheet") {
		t.Fatalf("expected first-match-wins to pick audience rule, got %q", got)
	}
	if strings.Contains(got, "brand tone") {
		t.Fatalf("expected only one rule's expansion appended, got %q", got)
	}
}

func TestExpandFallsBackWhenNoRuleMatches(t *testing.T) {
	got := Expand("completely unrelated text with no keywords")
	if !strings.Contains(got, "brand documents, content strategy") {
		t.Fatalf("expected fallback expansion, got %q", got)
	}
}

func TestExpandNeverRemovesOriginalText(t *testing.T) {
	original := "Tell me about my target audience"
	got := Expand(original)
	if !strings.HasPrefix(got, original) {
		t.Fatalf("expected original text preserved verbatim at the start, got %q", got)
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	input := "what script and hook should I use"
	if Expand(input) != Expand(input) {
		t.Fatal("expected Expand to be a pure function")
	}
}
