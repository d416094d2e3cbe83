// Package models holds the static model-namespace rules: upstream variant
// prefixes, thinking/search suffixes, and streaming-mode prefixes. Adapted
// from the teacher's internal/models/variants.go, with the Chinese-language
// default prefixes replaced by this system's ASCII vocabulary (SPEC_FULL.md
// §6) and the combinatorial listing generalised to both upstream variants.
package models

import "strings"

// Upstream variant selected by a model-name prefix.
type Variant string

const (
	VariantA Variant = "UpstreamA" // "geminicli" / Code Assist
	VariantB Variant = "UpstreamB" // "antigravity"
)

const (
	PrefixUpstreamB = "agy-"
	PrefixUpstreamA = "gcli-"

	StreamPrefixFake   = "fake-stream/"
	StreamPrefixRobust = "robust-stream/"

	SuffixMaxThinking = "-maxthinking"
	SuffixNoThinking  = "-nothinking"
	SuffixThinking    = "-thinking"
	SuffixSearch      = "-search"
)

// StreamMode names how responses should be delivered to the caller.
type StreamMode string

const (
	StreamNative StreamMode = "native" // true SSE passthrough
	StreamFake   StreamMode = "fake"   // keepalive heartbeats + single-shot payload
	StreamRobust StreamMode = "robust" // anti-truncation continuation mode
)

// ParsedModel is the result of stripping every recognised prefix/suffix off a
// caller-supplied model name.
type ParsedModel struct {
	Variant    Variant
	StreamMode StreamMode
	BaseModel  string // with thinking/search suffixes still attached
	MaxThink   bool
	NoThink    bool
	Search     bool
}

// Parse strips the variant prefix and any streaming-mode prefix from name,
// then records (without stripping) the thinking/search suffixes the
// RequestRewriter needs. The caller is responsible for further base-model
// normalisation (get_base_model_name-equivalent) since that also depends on
// Claude-family aliasing, which lives in internal/translator.
func Parse(name string) ParsedModel {
	pm := ParsedModel{Variant: VariantA, StreamMode: StreamNative, BaseModel: name}

	rest := name
	switch {
	case strings.HasPrefix(rest, StreamPrefixFake):
		pm.StreamMode = StreamFake
		rest = strings.TrimPrefix(rest, StreamPrefixFake)
	case strings.HasPrefix(rest, StreamPrefixRobust):
		pm.StreamMode = StreamRobust
		rest = strings.TrimPrefix(rest, StreamPrefixRobust)
	}

	switch {
	case strings.HasPrefix(rest, PrefixUpstreamB):
		pm.Variant = VariantB
		rest = strings.TrimPrefix(rest, PrefixUpstreamB)
	case strings.HasPrefix(rest, PrefixUpstreamA):
		pm.Variant = VariantA
		rest = strings.TrimPrefix(rest, PrefixUpstreamA)
	}

	pm.MaxThink = strings.Contains(rest, SuffixMaxThinking)
	pm.NoThink = strings.Contains(rest, SuffixNoThinking)
	pm.Search = strings.HasSuffix(rest, SuffixSearch)
	pm.BaseModel = rest
	return pm
}

// IsTier3 reports whether a (suffix-stripped) model name targets a tier-3
// ("3 pro" family) upstream model: the lower-cased name contains both "pro"
// and "3".
func IsTier3(baseModel string) bool {
	lower := strings.ToLower(baseModel)
	return strings.Contains(lower, "pro") && strings.Contains(lower, "3")
}

// IsPro reports whether baseModel is in the "pro" model-group for cooldown
// and quota purposes.
func IsPro(baseModel string) bool {
	return strings.Contains(strings.ToLower(baseModel), "pro")
}

// ModelGroup is the cooldown/quota bucket a model name falls into.
type ModelGroup string

const (
	GroupFlash ModelGroup = "flash"
	GroupPro   ModelGroup = "pro"
	GroupTier3 ModelGroup = "tier3"
)

// Group classifies baseModel into a cooldown/quota bucket.
func Group(baseModel string) ModelGroup {
	switch {
	case IsTier3(baseModel):
		return GroupTier3
	case IsPro(baseModel):
		return GroupPro
	default:
		return GroupFlash
	}
}

// IsThinkingModel reports whether the base model name implies thinking
// support (name contains "think" or "pro", per gemini_fix.is_thinking_model)
// — Claude-family models are thinking-capable too and are checked
// separately by the translator package via name substring.
func IsThinkingModel(baseModel string) bool {
	lower := strings.ToLower(baseModel)
	return strings.Contains(lower, "think") || strings.Contains(lower, "pro")
}
