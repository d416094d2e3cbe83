package models

import "testing"

func TestParseVariantPrefix(t *testing.T) {
	cases := []struct {
		in      string
		variant Variant
		base    string
	}{
		{"agy-claude-opus", VariantB, "claude-opus"},
		{"gcli-gemini-2.5-flash", VariantA, "gemini-2.5-flash"},
		{"gemini-2.5-flash", VariantA, "gemini-2.5-flash"},
	}
	for _, c := range cases {
		pm := Parse(c.in)
		if pm.Variant != c.variant || pm.BaseModel != c.base {
			t.Errorf("Parse(%q) = %+v, want variant=%v base=%q", c.in, pm, c.variant, c.base)
		}
	}
}

func TestParseStreamPrefix(t *testing.T) {
	pm := Parse("fake-stream/gcli-gemini-2.5-pro")
	if pm.StreamMode != StreamFake {
		t.Fatalf("expected fake stream mode, got %v", pm.StreamMode)
	}
	if pm.Variant != VariantA || pm.BaseModel != "gemini-2.5-pro" {
		t.Fatalf("unexpected parse: %+v", pm)
	}
}

func TestGroupClassification(t *testing.T) {
	if Group("gemini-2.5-flash") != GroupFlash {
		t.Fatal("flash model misclassified")
	}
	if Group("gemini-2.5-pro") != GroupPro {
		t.Fatal("pro model misclassified")
	}
	if Group("claude-3-pro-something") != GroupTier3 {
		t.Fatal("tier3 model misclassified")
	}
}

func TestIsThinkingModel(t *testing.T) {
	if !IsThinkingModel("gemini-2.5-pro") {
		t.Fatal("pro model should be thinking-capable")
	}
	if !IsThinkingModel("claude-sonnet-4-5-thinking") {
		t.Fatal("thinking-suffixed model should be thinking-capable")
	}
	if IsThinkingModel("gemini-2.5-flash") {
		t.Fatal("plain flash model should not be thinking-capable")
	}
}
