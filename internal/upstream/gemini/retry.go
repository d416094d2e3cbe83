package gemini

import (
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gcligateway/internal/constants"
)

// shouldRetry decides whether doAttempt should retry, and how long to wait
// first. Adapted from the teacher's client_retry.go nextBackoff/
// parseRetryAfter, but keyed off internal/constants' fixed per-class delays
// rather than a threaded RetryIntervalSec config, since this Client has no
// config dependency of its own (SPEC_FULL.md §4.8).
func shouldRetry(resp *http.Response, err error, attempt int) (bool, time.Duration) {
	if attempt >= constants.DefaultMaxRetries {
		return false, 0
	}

	if err != nil {
		if attempt >= constants.NetworkErrorMaxRetries {
			return false, 0
		}
		return true, jitter(constants.DefaultErrorRetryDelay, attempt)
	}
	if resp == nil {
		return false, 0
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return true, d
		}
		return true, jitter(constants.RateLimitRetryDelay, attempt)
	case resp.StatusCode == http.StatusServiceUnavailable:
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return true, d
		}
		return true, jitter(constants.ServiceUnavailableRetryDelay, attempt)
	case resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusGatewayTimeout:
		return true, jitter(constants.GatewayErrorRetryDelay, attempt)
	case resp.StatusCode >= 500:
		return true, jitter(constants.DefaultErrorRetryDelay, attempt)
	default:
		return false, 0
	}
}

// jitter applies the teacher's 0.5x-1.5x spread on top of a fixed per-class
// delay so concurrent callers hitting the same credential don't retry in
// lockstep.
func jitter(base time.Duration, attempt int) time.Duration {
	scaled := base
	if attempt > 0 {
		scaled = base * time.Duration(attempt+1)
	}
	spread := 0.5 + rand.Float64()
	return time.Duration(float64(scaled) * spread)
}

func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	layouts := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Until(t)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return 0, false
}

func classifyErr(err error) string {
	if err == nil {
		return ""
	}
	if ue, ok := err.(*url.Error); ok {
		if ue.Timeout() {
			return "timeout"
		}
		if ue.Err != nil {
			s := ue.Err.Error()
			switch {
			case strings.Contains(s, "no such host"):
				return "dns"
			case strings.Contains(s, "connection reset"):
				return "conn_reset"
			case strings.Contains(s, "broken pipe"):
				return "conn_broken_pipe"
			case strings.Contains(s, "i/o timeout"):
				return "timeout"
			}
		}
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "deadline exceeded"):
		return "deadline"
	case strings.Contains(s, "context canceled"):
		return "canceled"
	case strings.Contains(s, "no such host"):
		return "dns"
	case strings.Contains(s, "connection reset"):
		return "conn_reset"
	case strings.Contains(s, "broken pipe"):
		return "conn_broken_pipe"
	case strings.Contains(s, "timeout"):
		return "timeout"
	default:
		return "other"
	}
}
