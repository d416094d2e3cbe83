package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"gcligateway/internal/constants"
	"gcligateway/internal/models"
)

func TestApplyHeadersVariantA(t *testing.T) {
	c := NewClient(models.VariantA, "openai")
	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)
	c.applyHeaders(req, "tok123", RequestTypeAgent)

	if got := req.Header.Get("Authorization"); got != "Bearer tok123" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if got := req.Header.Get("User-Agent"); got != userAgentUpstreamA {
		t.Fatalf("unexpected user agent: %q", got)
	}
	if req.Header.Get("X-Request-Id") != "" {
		t.Fatal("upstream A should not set X-Request-Id")
	}
}

func TestApplyHeadersVariantB(t *testing.T) {
	c := NewClient(models.VariantB, "gemini")
	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)
	c.applyHeaders(req, "tok456", RequestTypeImageGen)

	if got := req.Header.Get("User-Agent"); got != userAgentUpstreamB {
		t.Fatalf("unexpected user agent: %q", got)
	}
	if req.Header.Get("X-Request-Id") == "" {
		t.Fatal("upstream B should set X-Request-Id")
	}
	if got := req.Header.Get("X-Request-Type"); got != string(RequestTypeImageGen) {
		t.Fatalf("unexpected request type header: %q", got)
	}
}

func TestShouldRetryRateLimit(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "5")

	retry, delay := shouldRetry(resp, nil, 0)
	if !retry {
		t.Fatal("expected retry on 429")
	}
	if delay != 5*time.Second {
		t.Fatalf("expected retry-after to win, got %v", delay)
	}
}

func TestShouldRetryExhausted(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	if retry, _ := shouldRetry(resp, nil, constants.DefaultMaxRetries); retry {
		t.Fatal("expected no retry once DefaultMaxRetries reached")
	}
}

func TestShouldRetryNotRetryableStatus(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}
	if retry, _ := shouldRetry(resp, nil, 0); retry {
		t.Fatal("expected no retry on 400")
	}
}

func TestFallbackOrderPreservesSuffix(t *testing.T) {
	order := fallbackOrder("gemini-2.5-pro-maxthinking")
	if len(order) == 0 || order[0] != "gemini-2.5-pro-maxthinking" {
		t.Fatalf("expected first candidate to be the requested model, got %v", order)
	}
	for _, m := range order {
		if m[len(m)-len("-maxthinking"):] != "-maxthinking" {
			t.Fatalf("expected every fallback candidate to keep suffix, got %q", m)
		}
	}
}

func TestFallbackOrderUnknownBasePassesThrough(t *testing.T) {
	order := fallbackOrder("gemini-3-pro-image")
	if len(order) != 1 || order[0] != "gemini-3-pro-image" {
		t.Fatalf("expected unknown base to pass through unchanged, got %v", order)
	}
}

func TestClassifyErr(t *testing.T) {
	timeoutErr := &url.Error{Err: context.DeadlineExceeded, Op: "Post", URL: "http://example.com"}
	if got := classifyErr(timeoutErr); got != "timeout" {
		t.Fatalf("expected timeout, got %s", got)
	}
	if got := classifyErr(errors.New("connection reset by peer")); got != "conn_reset" {
		t.Fatalf("expected conn_reset, got %s", got)
	}
	if got := classifyErr(nil); got != "" {
		t.Fatalf("expected empty classification for nil error, got %s", got)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{0: "error", 200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
