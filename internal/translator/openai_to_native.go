package translator

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func init() {
	Register(FormatOpenAI, FormatGemini, TranslatorConfig{
		RequestTransform: OpenAIToNativeRequest,
	})
}

// OpenAIToNativeRequest converts an OpenAI chat-completions request body
// into a native "contents" request, ready for per-variant normalisation by
// Normalize. model and stream are accepted for Registry interface
// compatibility; model aliasing happens in Normalize, not here.
func OpenAIToNativeRequest(model string, rawJSON []byte, stream bool) []byte {
	out := `{"contents":[]}`

	genConfigJSON, _ := json.Marshal(buildGenerationConfig(rawJSON))
	out, _ = sjson.SetRaw(out, "generationConfig", string(genConfigJSON))

	contents, systemInstructions := translateMessages(rawJSON)
	contentsJSON, _ := json.Marshal(contents)
	out, _ = sjson.SetRaw(out, "contents", string(contentsJSON))

	if len(systemInstructions) > 0 {
		sysJSON, _ := json.Marshal(map[string]interface{}{"parts": systemInstructions})
		out, _ = sjson.SetRaw(out, "systemInstruction", string(sysJSON))
	}

	out = applyToolDeclarations(out, rawJSON)
	return []byte(out)
}

// applyToolDeclarations copies an OpenAI `tools` array into native
// `tools[].functionDeclarations`.
func applyToolDeclarations(out string, rawJSON []byte) string {
	tools := gjson.GetBytes(rawJSON, "tools")
	if !tools.Exists() || !tools.IsArray() {
		return out
	}

	var decls []interface{}
	for _, t := range tools.Array() {
		if t.Get("type").String() != "function" {
			continue
		}
		fn := t.Get("function")
		decl := map[string]interface{}{
			"name":        fn.Get("name").String(),
			"description": fn.Get("description").String(),
		}
		if params := fn.Get("parameters"); params.Exists() {
			decl["parameters"] = params.Value()
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return out
	}

	toolsJSON, _ := json.Marshal([]interface{}{
		map[string]interface{}{"functionDeclarations": decls},
	})
	out, _ = sjson.SetRaw(out, "tools", string(toolsJSON))

	if choice := gjson.GetBytes(rawJSON, "tool_choice"); choice.Exists() {
		mode := "AUTO"
		switch {
		case choice.String() == "none":
			mode = "NONE"
		case choice.String() == "required":
			mode = "ANY"
		case choice.IsObject():
			mode = "ANY"
		}
		cfgJSON, _ := json.Marshal(map[string]interface{}{
			"functionCallingConfig": map[string]interface{}{"mode": mode},
		})
		out, _ = sjson.SetRaw(out, "toolConfig", string(cfgJSON))
	}
	return out
}
