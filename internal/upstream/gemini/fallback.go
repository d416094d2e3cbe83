package gemini

import "strings"

// fallbackBases returns the base-model fallback order for a bare base name
// (no thinking/search suffix), grounded on the teacher's
// internal/models/model_utils.go FallbackBases table.
func fallbackBases(base string) []string {
	var order []string
	push := func(s string) {
		if s == "" {
			return
		}
		for _, e := range order {
			if e == s {
				return
			}
		}
		order = append(order, s)
	}

	switch strings.ToLower(base) {
	case "gemini-2.5-pro":
		push("gemini-2.5-pro")
		push("gemini-2.5-pro-preview-06-05")
		push("gemini-2.5-pro-preview-05-06")
		push("gemini-2.5-flash")
	case "gemini-2.5-pro-preview-06-05", "gemini-2.5-pro-preview-05-06":
		push(strings.ToLower(base))
		if strings.ToLower(base) == "gemini-2.5-pro-preview-06-05" {
			push("gemini-2.5-pro-preview-05-06")
		} else {
			push("gemini-2.5-pro-preview-06-05")
		}
		push("gemini-2.5-pro")
		push("gemini-2.5-flash")
	case "gemini-2.5-flash":
		push("gemini-2.5-flash")
		push("gemini-2.5-flash-preview-09-2025")
	case "gemini-2.5-flash-image":
		push("gemini-2.5-flash-image")
		push("gemini-2.5-flash-image-preview")
	case "gemini-2.5-flash-image-preview":
		push("gemini-2.5-flash-image-preview")
		push("gemini-2.5-flash-image")
	default:
		push(base)
	}
	return order
}

// fallbackOrder returns the full candidate list for model, preserving any
// thinking/search suffix the caller attached to the base name it resolved
// to. Suffix stripping mirrors internal/translator's baseModelName loop so
// both packages agree on what counts as a "suffix".
func fallbackOrder(model string) []string {
	base, suffix := splitModelSuffix(model)
	bases := fallbackBases(base)

	out := make([]string, 0, len(bases))
	for _, b := range bases {
		out = append(out, b+suffix)
	}
	return out
}

var modelSuffixes = []string{"-maxthinking", "-nothinking", "-thinking", "-search"}

// splitModelSuffix peels off every recognised trailing suffix from model and
// returns the bare base name plus the concatenated suffix string, so the
// fallback order can be recomputed on the base and the suffix reapplied.
func splitModelSuffix(model string) (base, suffix string) {
	base = model
	var peeled []string
	for {
		matched := false
		for _, s := range modelSuffixes {
			if strings.HasSuffix(base, s) {
				base = strings.TrimSuffix(base, s)
				peeled = append([]string{s}, peeled...)
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return base, strings.Join(peeled, "")
}
