package credential

import (
	"testing"
	"time"
)

func TestParseRetryDelayPrecedence(t *testing.T) {
	if got := ParseRetryDelay("30", `"retryDelay":"10s"`); got != 30*time.Second {
		t.Fatalf("Retry-After header should win, got %v", got)
	}
	if got := ParseRetryDelay("", `"retryDelay":"15s"`); got != 15*time.Second {
		t.Fatalf("retryDelay field should be used, got %v", got)
	}
	if got := ParseRetryDelay("", "please retry after 45 seconds"); got != 45*time.Second {
		t.Fatalf("retry-after phrase should be used, got %v", got)
	}
	if got := ParseRetryDelay("", "try again in 20 seconds"); got != 20*time.Second {
		t.Fatalf("bare seconds phrase should be used, got %v", got)
	}
	if got := ParseRetryDelay("", "no delay info here"); got != defaultRetryDelay {
		t.Fatalf("expected default delay, got %v", got)
	}
}
