package errors

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind is the ErrorClassifier's coarse error category (SPEC_FULL.md §4.2).
type Kind string

const (
	KindRateLimit      Kind = "RATE_LIMIT"
	KindQuotaExhausted Kind = "QUOTA_EXHAUSTED"
	KindAuthError      Kind = "AUTH_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindUpstream5xx    Kind = "UPSTREAM_5XX"
	KindNetworkError   Kind = "NETWORK_ERROR"
	KindTimeout        Kind = "TIMEOUT"
	KindConfigError    Kind = "CONFIG_ERROR"
	KindTokenError     Kind = "TOKEN_ERROR"
	KindNoCredential   Kind = "NO_CREDENTIAL"
	KindUnknown        Kind = "UNKNOWN"
)

var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`API Error (\d{3})`),
	regexp.MustCompile(`"code":\s*(\d{3})`),
	regexp.MustCompile(`status_code[=:]\s*(\d{3})`),
	regexp.MustCompile(`HTTP (\d{3})`),
	regexp.MustCompile(`Error (\d{3}):`),
}

// ExtractStatus scans text with a fixed set of regexes and returns the first
// captured 4xx/5xx status code found, else def.
func ExtractStatus(text string, def int) int {
	for _, re := range statusPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) != 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 400 && n < 600 {
			return n
		}
	}
	return def
}

var networkHints = []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "eof"}

// Classify maps an (HTTP status, raw text) pair to a (Kind, code). It is
// pure and deterministic: calling it twice on the same inputs returns the
// same result (R2).
func Classify(status int, text string) (Kind, string) {
	lower := strings.ToLower(text)

	switch {
	case status == 429:
		if strings.Contains(lower, "quota") {
			return KindQuotaExhausted, "quota_exhausted"
		}
		return KindRateLimit, "rate_limit_exceeded"
	case status == 401:
		return KindAuthError, "invalid_api_key"
	case status == 403:
		return KindAuthError, "permission_denied"
	case status == 404:
		return KindNotFound, "not_found"
	case status == 504:
		return KindTimeout, "timeout"
	case status >= 500 && status < 600:
		return KindUpstream5xx, "upstream_5xx"
	}

	for _, hint := range networkHints {
		if strings.Contains(lower, hint) {
			if strings.Contains(hint, "timeout") || strings.Contains(hint, "deadline") {
				return KindTimeout, "timeout"
			}
			return KindNetworkError, "network_error"
		}
	}

	if strings.Contains(lower, "project_id") || strings.Contains(lower, "project id") {
		return KindConfigError, "config_error"
	}
	if strings.Contains(lower, "refresh_token") || strings.Contains(lower, "invalid_grant") {
		return KindTokenError, "token_error"
	}
	if strings.Contains(lower, "no credential") || strings.Contains(lower, "no_credential") {
		return KindNoCredential, "no_credential"
	}

	return KindUnknown, "unknown_error"
}

// MessageRule overrides the surfaced error message for a classified error.
// Either Kind or Keyword (or both) may be set; when both are set, a match
// requires both to hold. Rules are evaluated in descending Priority order,
// first match wins — mirroring the admin-configurable ErrorMessageRule table
// (SPEC_FULL.md §3/§7).
type MessageRule struct {
	Kind     Kind
	Keyword  string
	Message  string
	Priority int
	Active   bool
}

// ResolveMessage returns the first active rule (by descending priority) that
// matches kind and rawText, or ("", false) if none match.
func ResolveMessage(rules []MessageRule, kind Kind, rawText string) (string, bool) {
	sorted := make([]MessageRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	lower := strings.ToLower(rawText)
	for _, r := range sorted {
		kindOK := r.Kind == "" || r.Kind == kind
		keywordOK := r.Keyword == "" || strings.Contains(lower, strings.ToLower(r.Keyword))
		if r.Kind != "" && r.Keyword != "" {
			if kindOK && keywordOK {
				return r.Message, true
			}
			continue
		}
		if kindOK && keywordOK {
			return r.Message, true
		}
	}
	return "", false
}
