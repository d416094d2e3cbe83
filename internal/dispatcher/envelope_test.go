package dispatcher

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestBuildEnvelope_UsesNormalizedModelAndStripsInnerField(t *testing.T) {
	request := []byte(`{"model":"claude-opus-4-5-thinking","contents":[]}`)

	envelope := buildEnvelope("proj-123", request)

	if got := gjson.GetBytes(envelope, "model").String(); got != "claude-opus-4-5-thinking" {
		t.Fatalf("expected envelope model to be the normalized name, got %q", got)
	}
	if got := gjson.GetBytes(envelope, "project").String(); got != "proj-123" {
		t.Fatalf("expected project %q, got %q", "proj-123", got)
	}
	if gjson.GetBytes(envelope, "request.model").Exists() {
		t.Fatal("expected model field to be stripped from the nested request")
	}
	if !gjson.GetBytes(envelope, "request.contents").Exists() {
		t.Fatal("expected request.contents to survive")
	}
}
