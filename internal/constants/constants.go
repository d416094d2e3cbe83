// Package constants collects the small, cross-package tunables the gateway
// needs at compile time: transport timeouts, retry/backoff schedules, and
// generation-parameter clamps. Anything that varies per deployment belongs in
// config, not here.
package constants

import "time"

// Generation parameter clamps, enforced by the request rewriter regardless of
// what the caller asked for.
const (
	MinTopK         = 1
	MaxTopK         = 64
	DefaultTopK     = 64
	MinOutputTokens = 1
	MaxOutputTokens = 65536
)

// SSE scanner buffer sizing.
const (
	SSEScannerInitialBufferSize = 64 * 1024
	SSEScannerMaxBufferSize     = 4 * 1024 * 1024
)

// Fake-streaming and anti-truncation tunables (SPEC_FULL.md §4.8).
const (
	FakeStreamHeartbeatInterval = 2 * time.Second
	AntiTruncationMaxAttempts   = 3
	AntiTruncationRetryDelay    = 1 * time.Second
)

// Upstream call timeouts and connection pool sizing.
const (
	UpstreamStreamTimeout        = 180 * time.Second
	UpstreamGenerateTimeout      = 180 * time.Second
	CredentialRefreshInterval    = 5 * time.Minute
	ServerShutdownTimeout        = 30 * time.Second
	ServerGracefulWait           = 2 * time.Second
	DefaultDialTimeout           = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 600 * time.Second
	DefaultExpectContinueTimeout = 2 * time.Second
	DefaultKeepAlive             = 30 * time.Second
	BaseMaxIdleConns             = 4096
	BaseMaxIdleConnsPerHost      = 4096
	BaseIdleConnTimeout          = 90 * time.Second
)

// Retry/backoff schedule, keyed by the error classification that triggered it.
const (
	DefaultMaxRetries    = 3
	RateLimitRetryDelay  = 60 * time.Second
	ServiceUnavailableRetryDelay = 30 * time.Second
	GatewayErrorRetryDelay       = 15 * time.Second
	DefaultErrorRetryDelay       = 5 * time.Second
	NetworkErrorMaxRetries       = 5

	// Consecutive-failure thresholds for auto-disabling a credential. No code
	// reads them: credential.HandleFailure disables a credential on its first
	// auth error and keeps no consecutive-failure count.
	DefaultAutoBan429Threshold = 3
	DefaultAutoBan403Threshold = 5
	DefaultAutoBan401Threshold = 3

	MaxErrorMessageLength = 200
)

// TransportConfig describes the dial/idle-connection tuning applied to an
// upstream HTTP client.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
}

// GetBaseTransportConfig returns the default transport tuning used for both
// upstream variants.
func GetBaseTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        BaseMaxIdleConns,
		MaxIdleConnsPerHost: BaseMaxIdleConnsPerHost,
		IdleConnTimeout:     BaseIdleConnTimeout,
		DialTimeout:         DefaultDialTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
	}
}
