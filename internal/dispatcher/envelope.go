package dispatcher

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// buildEnvelope wraps a normalised native request under the
// {model, project, request} envelope the upstream wire protocol expects
// (SPEC_FULL.md §6), grounded on original_source's antigravity_client.py
// payload construction, which sends the already-aliased model as the
// top-level `payload["model"]` with no `model` left inside the nested
// request. The envelope's model is read off request itself — translator.Normalize
// already resolved aliasing/suffix-stripping/image-rewrite into
// request["model"] — rather than the raw, still-suffixed BaseModel, since
// gemini.Client's fallback-base retry (client.go) reads this top-level field.
func buildEnvelope(project string, request []byte) []byte {
	model := gjson.GetBytes(request, "model").String()
	request, _ = sjson.DeleteBytes(request, "model")

	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "model", model)
	out, _ = sjson.SetBytes(out, "project", project)
	out, _ = sjson.SetRawBytes(out, "request", request)
	return out
}
