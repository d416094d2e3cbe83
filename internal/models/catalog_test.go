package models

import "testing"

func TestBaseModels_ReturnsCopy(t *testing.T) {
	got := BaseModels()
	if len(got) != len(baseCatalog) {
		t.Fatalf("expected %d base models, got %d", len(baseCatalog), len(got))
	}
	got[0] = "mutated"
	if baseCatalog[0] == "mutated" {
		t.Fatal("BaseModels must return a copy, not the backing slice")
	}
}

func TestExpandVariants_IncludesPrefixesAndThinkingSuffixes(t *testing.T) {
	ids := ExpandVariants([]string{"gemini-2.5-flash", "claude-opus-4-5-thinking"})

	want := []string{
		"gemini-2.5-flash",
		PrefixUpstreamA + "gemini-2.5-flash",
		PrefixUpstreamB + "gemini-2.5-flash",
		"claude-opus-4-5-thinking",
		"claude-opus-4-5-thinking" + SuffixMaxThinking,
		"claude-opus-4-5-thinking" + SuffixNoThinking,
		PrefixUpstreamA + "claude-opus-4-5-thinking",
		PrefixUpstreamA + "claude-opus-4-5-thinking" + SuffixMaxThinking,
		PrefixUpstreamA + "claude-opus-4-5-thinking" + SuffixNoThinking,
		PrefixUpstreamB + "claude-opus-4-5-thinking",
		PrefixUpstreamB + "claude-opus-4-5-thinking" + SuffixMaxThinking,
		PrefixUpstreamB + "claude-opus-4-5-thinking" + SuffixNoThinking,
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Errorf("missing expected variant %q", w)
		}
	}
}
