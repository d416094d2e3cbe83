// Package gemini implements UpstreamClient (SPEC_FULL.md §4.8): two HTTP
// clients sharing a {Generate, Stream, CountTokens, Action} interface, one
// per upstream variant. Adapted from the teacher's internal/upstream/gemini
// package — the same postJSON/doAttempt/backoff/model-fallback shape,
// generalised from a single Code-Assist host to both UpstreamA and
// UpstreamB's host/header/User-Agent pairs.
package gemini

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gcligateway/internal/constants"
	"gcligateway/internal/models"
	"gcligateway/internal/monitoring"
	"gcligateway/internal/monitoring/tracing"
)

const (
	hostUpstreamA = "https://cloudcode-pa.googleapis.com"
	hostUpstreamB = "https://cloudcode-pa.googleapis.com" // antigravity shares the Code Assist front door; distinguished by UA/headers

	userAgentUpstreamA = "grpc-java-okhttp/1.68.1"
	userAgentUpstreamB = "antigravity/1.11.3 windows/amd64"
)

// RequestType distinguishes UpstreamB call shapes for its requestType header.
type RequestType string

const (
	RequestTypeAgent    RequestType = "agent"
	RequestTypeImageGen RequestType = "image_gen"
)

// Client is a single upstream variant's HTTP client.
type Client struct {
	variant models.Variant
	host    string
	cli     *http.Client
	caller  string // "openai" or "gemini", for metrics labels
}

// NewClient builds a Client for variant, sharing the teacher's transport
// tuning (connect/TLS/idle timeouts and pool sizes from internal/constants).
func NewClient(variant models.Variant, caller string) *Client {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.DefaultDialTimeout,
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   constants.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.DefaultResponseHeaderTimeout,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       constants.BaseIdleConnTimeout,
	}

	host := hostUpstreamA
	if variant == models.VariantB {
		host = hostUpstreamB
	}

	return &Client{
		variant: variant,
		host:    host,
		caller:  caller,
		cli:     &http.Client{Transport: tr, Timeout: 0},
	}
}

func (c *Client) applyHeaders(req *http.Request, bearer string, requestType RequestType) {
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	switch c.variant {
	case models.VariantB:
		req.Header.Set("User-Agent", userAgentUpstreamB)
		req.Header.Set("X-Request-Id", uuid.NewString())
		if requestType != "" {
			req.Header.Set("X-Request-Type", string(requestType))
		}
	default:
		req.Header.Set("User-Agent", userAgentUpstreamA)
		req.Header.Set("X-Goog-Api-Client", "gl-go/"+strings.TrimPrefix(goRuntimeVersion(), "go"))
		req.Header.Set("Client-Metadata", "ideType=IDE_UNSPECIFIED,platform=PLATFORM_UNSPECIFIED,pluginType=GEMINI")
	}
}

// postJSON sends a POST with JSON body, applying variant headers, timeout,
// retry-with-backoff and model-fallback-on-404 (SPEC_FULL.md §4.8).
//
// Caller MUST close resp.Body when err is nil.
func (c *Client) postJSON(ctx context.Context, url string, body []byte, bearer string, requestType RequestType) (*http.Response, error) {
	origModel := strings.TrimSpace(gjson.GetBytes(body, "model").String())
	candidates := fallbackOrder(origModel)

	spanCtx, span := tracing.StartSpan(ctx, "upstream/gemini", "Gemini.PostJSON",
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("http.url", url),
			attribute.String("upstream.caller", c.caller),
			attribute.String("upstream.variant", string(c.variant)),
			attribute.String("upstream.original_model", origModel),
		))
	defer span.End()
	ctx = spanCtx

	totalRetries := 0
	finish := func(status int, err error) {
		span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("upstream.retry_total", totalRetries))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("http_status=%d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	for i, m := range candidates {
		trial, _ := sjson.SetBytes(body, "model", m)
		resp, err, status, retries := c.doAttempt(ctx, url, trial, bearer, requestType)
		totalRetries += retries
		monitoring.UpstreamModelRequests.WithLabelValues(string(c.variant), m, statusClass(status)).Inc()
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.String("upstream.model", m),
			attribute.Int("http.status_code", status),
			attribute.Int("retry.count", retries),
		))

		if status == 404 && i < len(candidates)-1 {
			if resp != nil {
				resp.Body.Close()
			}
			monitoring.ModelFallbacksTotal.WithLabelValues(c.caller, string(c.variant), m, candidates[i+1]).Inc()
			continue
		}
		finish(status, err)
		return resp, err
	}

	resp, err, status, retries := c.doAttempt(ctx, url, body, bearer, requestType)
	totalRetries += retries
	finish(status, err)
	return resp, err
}

func getStatus(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// doAttempt runs the request, retrying on 429/5xx per shouldRetry, up to
// DefaultMaxRetries retries (DefaultMaxRetries+1 attempts), and records per-attempt upstream metrics the
// way the teacher's client_headers.go doAttempt does.
func (c *Client) doAttempt(ctx context.Context, url string, body []byte, bearer string, requestType RequestType) (*http.Response, error, int, int) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= constants.DefaultMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, newBodyReader(body))
		if err != nil {
			return nil, err, 0, attempt
		}
		c.applyHeaders(req, bearer, requestType)

		start := time.Now()
		resp, err := c.cli.Do(req)
		dur := time.Since(start)
		lastResp, lastErr = resp, err

		monitoring.UpstreamRequestsTotal.WithLabelValues(string(c.variant), statusClass(getStatus(resp))).Inc()
		monitoring.UpstreamRequestDuration.WithLabelValues(string(c.variant)).Observe(dur.Seconds())
		if err != nil {
			monitoring.UpstreamErrors.WithLabelValues(string(c.variant), classifyErr(err)).Inc()
		}

		retry, delay := shouldRetry(resp, err, attempt)
		if !retry {
			outcome := "ok"
			if attempt > 0 {
				outcome = "exhausted"
				if err == nil && resp != nil && resp.StatusCode < 400 {
					outcome = "recovered"
				}
			}
			if attempt > 0 {
				monitoring.UpstreamRetryAttempts.WithLabelValues(string(c.variant), outcome).Inc()
			}
			return resp, err, getStatus(resp), attempt
		}
		if resp != nil {
			resp.Body.Close()
		}
		monitoring.UpstreamRetryAttempts.WithLabelValues(string(c.variant), "retry").Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err(), getStatus(resp), attempt
		case <-time.After(delay):
		}
	}
	return lastResp, lastErr, getStatus(lastResp), constants.DefaultMaxRetries
}

// Generate performs a non-streaming generateContent call.
func (c *Client) Generate(ctx context.Context, bearer string, payload []byte) (*http.Response, error) {
	return c.postJSON(ctx, c.host+"/v1internal:generateContent", payload, bearer, RequestTypeAgent)
}

// Stream performs a streaming generateContent call (SSE).
func (c *Client) Stream(ctx context.Context, bearer string, payload []byte) (*http.Response, error) {
	return c.postJSON(ctx, c.host+"/v1internal:streamGenerateContent?alt=sse", payload, bearer, RequestTypeAgent)
}

// CountTokens performs a countTokens call.
func (c *Client) CountTokens(ctx context.Context, bearer string, payload []byte) (*http.Response, error) {
	return c.postJSON(ctx, c.host+"/v1internal:countTokens", payload, bearer, RequestTypeAgent)
}

// Action performs an arbitrary v1internal action (loadCodeAssist, onboardUser, ...).
func (c *Client) Action(ctx context.Context, bearer, action string, payload []byte) (*http.Response, error) {
	return c.postJSON(ctx, c.host+"/v1internal:"+action, payload, bearer, RequestTypeAgent)
}
