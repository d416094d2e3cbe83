package errors

import "testing"

func TestExtractStatus(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{`API Error 429: too many requests`, 429},
		{`{"code": 503, "message": "unavailable"}`, 503},
		{`status_code=500`, 500},
		{`HTTP 404 not found`, 404},
		{`Error 401: unauthorized`, 401},
		{`no status here`, 0},
	}
	for _, c := range cases {
		if got := ExtractStatus(c.text, 0); got != c.want {
			t.Errorf("ExtractStatus(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestClassifyStable(t *testing.T) {
	k1, c1 := Classify(429, "rate limited")
	k2, c2 := Classify(429, "rate limited")
	if k1 != k2 || c1 != c2 {
		t.Fatalf("Classify not stable: (%v,%v) vs (%v,%v)", k1, c1, k2, c2)
	}
	if k1 != KindRateLimit {
		t.Fatalf("expected RATE_LIMIT, got %v", k1)
	}
}

func TestClassifyAuthAndTimeout(t *testing.T) {
	if k, _ := Classify(401, ""); k != KindAuthError {
		t.Fatalf("expected AUTH_ERROR, got %v", k)
	}
	if k, _ := Classify(0, "context deadline exceeded"); k != KindTimeout {
		t.Fatalf("expected TIMEOUT, got %v", k)
	}
	if k, _ := Classify(0, "connection reset by peer"); k != KindNetworkError {
		t.Fatalf("expected NETWORK_ERROR, got %v", k)
	}
}

func TestResolveMessageRulePriority(t *testing.T) {
	rules := []MessageRule{
		{Kind: KindRateLimit, Message: "generic rate limit", Priority: 1, Active: true},
		{Kind: KindRateLimit, Keyword: "flash", Message: "flash model rate limited", Priority: 10, Active: true},
	}
	msg, ok := ResolveMessage(rules, KindRateLimit, "gemini-2.5-flash rate limited")
	if !ok || msg != "flash model rate limited" {
		t.Fatalf("expected high priority specific rule to win, got %q ok=%v", msg, ok)
	}

	msg, ok = ResolveMessage(rules, KindRateLimit, "gemini-2.5-pro rate limited")
	if !ok || msg != "generic rate limit" {
		t.Fatalf("expected fallback rule, got %q ok=%v", msg, ok)
	}
}

func TestResolveMessageNoMatch(t *testing.T) {
	rules := []MessageRule{{Kind: KindAuthError, Message: "x", Priority: 1, Active: true}}
	if _, ok := ResolveMessage(rules, KindRateLimit, "anything"); ok {
		t.Fatal("expected no match")
	}
}
