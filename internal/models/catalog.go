package models

// baseCatalog lists the canonical upstream model families this gateway
// advertises, independent of caller-chosen prefix/suffix decoration.
// Grounded on the normalize.go alias table (aliasClaudeModel) and the
// thinking-model set (IsThinkingModel) — these are the only names Normalize
// actually knows how to rewrite for, so the catalog mirrors them rather than
// inventing a separate list.
var baseCatalog = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-3-pro-image",
	"claude-opus-4-5-thinking",
	"claude-sonnet-4-5-thinking",
}

// variantPrefixes enumerates every prefix under which a base model is
// reachable: no prefix (UpstreamA default), the explicit UpstreamA prefix,
// and the UpstreamB prefix.
var variantPrefixes = []string{"", PrefixUpstreamA, PrefixUpstreamB}

// BaseModels returns the canonical model-family ids this gateway supports.
func BaseModels() []string {
	out := make([]string, len(baseCatalog))
	copy(out, baseCatalog)
	return out
}

// ExpandVariants generates the full caller-visible id list for bases:
// every variant-prefix combination, plus the thinking-suffix forms for
// models IsThinkingModel recognises. Streaming-mode prefixes are left out
// of the catalog since they compose with any model rather than naming one.
func ExpandVariants(bases []string) []string {
	out := make([]string, 0, len(bases)*len(variantPrefixes))
	for _, base := range bases {
		for _, prefix := range variantPrefixes {
			out = append(out, prefix+base)
			if IsThinkingModel(base) {
				out = append(out, prefix+base+SuffixMaxThinking)
				out = append(out, prefix+base+SuffixNoThinking)
			}
		}
	}
	return out
}
