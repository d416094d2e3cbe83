package streaming

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestFakeStreamEmitsRoleHeartbeatsAndContent(t *testing.T) {
	ctx := context.Background()
	called := make(chan struct{})

	reader := FakeStream(ctx, "test-model", func(ctx context.Context) ([]byte, error) {
		<-time.After(30 * time.Millisecond)
		close(called)
		return []byte(`{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}]}`), nil
	})

	output, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-called

	text := string(output)
	if !strings.Contains(text, `"role":"assistant"`) {
		t.Error("expected initial role chunk")
	}
	if !strings.Contains(text, "hello there") {
		t.Error("expected final content chunk")
	}
	if !strings.Contains(text, `"finish_reason":"stop"`) {
		t.Error("expected finish_reason stop on final chunk")
	}
	if !strings.HasSuffix(strings.TrimRight(text, "\n"), "[DONE]") {
		t.Error("expected stream to end with [DONE]")
	}
}

func TestFakeStreamSurfacesCallError(t *testing.T) {
	ctx := context.Background()
	reader := FakeStream(ctx, "test-model", func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("upstream exploded")
	})

	output, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !strings.Contains(string(output), "upstream exploded") {
		t.Error("expected error message to surface in stream")
	}
	if !strings.Contains(string(output), "[DONE]") {
		t.Error("expected [DONE] even on upstream error")
	}
}

func TestExtractContentHandlesMalformedBody(t *testing.T) {
	content, reason := extractContent([]byte("not json"))
	if content != "" || reason != "" {
		t.Fatalf("expected empty extraction for malformed body, got %q %q", content, reason)
	}
}

func TestAntiTruncateAccumulatesAcrossAttempts(t *testing.T) {
	ctx := context.Background()
	attempt := 0

	reader := AntiTruncate(ctx, "test-model", func(ctx context.Context, prior string, n int) ([]byte, error) {
		attempt++
		if n == 0 {
			return []byte(`{"choices":[{"message":{"content":"part one "},"finish_reason":"length"}],"usage":{"total_tokens":10}}`), nil
		}
		return []byte(`{"choices":[{"message":{"content":"part two"},"finish_reason":"stop"}],"usage":{"total_tokens":20}}`), nil
	})

	output, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt != 2 {
		t.Fatalf("expected exactly 2 continuation attempts, got %d", attempt)
	}
	if !strings.Contains(string(output), "part one part two") {
		t.Errorf("expected merged content in output, got %q", output)
	}
}

func TestAntiTruncateStopsAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	attempt := 0

	reader := AntiTruncate(ctx, "test-model", func(ctx context.Context, prior string, n int) ([]byte, error) {
		attempt++
		return []byte(`{"choices":[{"message":{"content":"x"},"finish_reason":"length"}]}`), nil
	})

	_, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt != 3 {
		t.Fatalf("expected attempts capped at AntiTruncationMaxAttempts (3), got %d", attempt)
	}
}

func TestIsTruncated(t *testing.T) {
	cases := map[string]bool{"length": true, "MAX_TOKENS": true, "stop": false, "": false}
	for reason, want := range cases {
		if got := isTruncated(reason); got != want {
			t.Errorf("isTruncated(%q) = %v, want %v", reason, got, want)
		}
	}
}
