package translator

import "strings"

// sanitizeText right-trims a string, mirroring the native-rewrite part
// sanitisation rule (§4.7): "string text values are right-trimmed".
func sanitizeText(text string) string {
	return strings.TrimRight(text, " \t\r\n")
}

// sanitizeParts right-trims every part's "text" field in place.
func sanitizeParts(parts []interface{}) []interface{} {
	for _, part := range parts {
		if mp, ok := part.(map[string]interface{}); ok {
			if text, ok := mp["text"].(string); ok {
				mp["text"] = sanitizeText(text)
			}
		}
	}
	return parts
}

func sanitizeMessages(messages []interface{}) []interface{} {
	for _, item := range messages {
		msg, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if parts, ok := msg["parts"].([]interface{}); ok {
			msg["parts"] = sanitizeParts(parts)
		}
	}
	return messages
}
