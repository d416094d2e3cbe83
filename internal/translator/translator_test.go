package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"gcligateway/internal/models"
)

func TestOpenAIToNativeRequestBasic(t *testing.T) {
	in := `{
		"model": "gcli-gemini-2.5-flash",
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hello"}
		],
		"temperature": 0.5,
		"max_tokens": 100000
	}`

	out := OpenAIToNativeRequest("gemini-2.5-flash", []byte(in), false)
	parsed := gjson.ParseBytes(out)

	if got := parsed.Get("systemInstruction.parts.0.text").String(); got != "be terse" {
		t.Fatalf("unexpected system instruction: %q", got)
	}
	if got := parsed.Get("contents.0.role").String(); got != "user" {
		t.Fatalf("expected first content role user, got %q", got)
	}
	if got := parsed.Get("contents.0.parts.0.text").String(); got != "hello" {
		t.Fatalf("unexpected user text: %q", got)
	}
	if got := parsed.Get("generationConfig.maxOutputTokens").Int(); got != 65536 {
		t.Fatalf("expected max_tokens clamped to 65536, got %d", got)
	}
}

func TestNormalizeUpstreamBInjectsPreambleAndAliasesClaude(t *testing.T) {
	raw := `{"contents":[{"role":"user","parts":[{"text":"hi"}]}],"generationConfig":{}}`
	out := Normalize([]byte(raw), models.VariantB, "claude-opus")
	parsed := gjson.ParseBytes(out)

	if !strings.Contains(parsed.Get("systemInstruction.parts.0.text").String(), "Antigravity") {
		t.Fatal("expected antigravity preamble to be injected")
	}
	if got := parsed.Get("model").String(); got != "claude-opus-4-5-thinking" {
		t.Fatalf("expected opus alias, got %q", got)
	}
	for _, s := range parsed.Get("safetySettings").Array() {
		if s.Get("threshold").String() != "BLOCK_NONE" {
			t.Fatalf("expected all safety thresholds BLOCK_NONE, got %s", s.Raw)
		}
	}
}

func TestNormalizeImageModelStripsAncillaryFields(t *testing.T) {
	raw := `{"contents":[],"systemInstruction":{"parts":[{"text":"x"}]},"tools":[{"googleSearch":{}}]}`
	out := Normalize([]byte(raw), models.VariantB, "gemini-image-preview")
	var result map[string]interface{}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result["model"] != "gemini-3-pro-image" {
		t.Fatalf("expected image model rewrite, got %v", result["model"])
	}
	if _, has := result["systemInstruction"]; has {
		t.Fatal("expected systemInstruction dropped for image model")
	}
	if _, has := result["tools"]; has {
		t.Fatal("expected tools dropped for image model")
	}
}

func TestNormalizeDropsEmptyParts(t *testing.T) {
	raw := `{"contents":[{"role":"user","parts":[{"text":""},{"text":"kept  "}]}]}`
	out := Normalize([]byte(raw), models.VariantA, "gemini-2.5-flash")
	parsed := gjson.ParseBytes(out)
	parts := parsed.Get("contents.0.parts").Array()
	if len(parts) != 1 {
		t.Fatalf("expected empty part dropped, got %d parts", len(parts))
	}
	if parts[0].Get("text").String() != "kept" {
		t.Fatalf("expected right-trimmed text, got %q", parts[0].Get("text").String())
	}
}

func TestNativeToOpenAIResponseExtractsReasoning(t *testing.T) {
	native := `{
		"candidates": [{
			"content": {"parts": [
				{"thought": true, "text": "thinking..."},
				{"text": "the answer"}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5}
	}`
	out, err := NativeToOpenAIResponse(nil, "gemini-2.5-flash", []byte(native))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := gjson.ParseBytes(out)
	if got := parsed.Get("choices.0.message.content").String(); got != "the answer" {
		t.Fatalf("unexpected content: %q", got)
	}
	if got := parsed.Get("choices.0.message.reasoning_content").String(); got != "thinking..." {
		t.Fatalf("unexpected reasoning_content: %q", got)
	}
	if got := parsed.Get("usage.total_tokens").Int(); got != 15 {
		t.Fatalf("expected total_tokens 15, got %d", got)
	}
}
