// Package dispatcher implements the Dispatcher (SPEC_FULL.md §4.9): the
// per-request state machine tying together QuotaGuard, CredentialPool,
// TokenRefresher, ProjectResolver, UpstreamClient, and UsageLogger. Both the
// OpenAI-compatible and native HTTP surfaces call into the same Dispatcher
// once their handler has translated the request into native "contents" JSON;
// only the wire-format translation differs between the two callers.
package dispatcher

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"gcligateway/internal/config"
	"gcligateway/internal/credential"
	"gcligateway/internal/crypto"
	apperrors "gcligateway/internal/errors"
	"gcligateway/internal/models"
	"gcligateway/internal/monitoring"
	"gcligateway/internal/oauth"
	"gcligateway/internal/quota"
	"gcligateway/internal/storage"
	"gcligateway/internal/upstream/gemini"
	"gcligateway/internal/usage"
)

// retryableConnErrors is the fixed connection-reset/timeout whitelist from
// SPEC_FULL.md §4.9 step 4e, checked against the raw error text when no HTTP
// status is available (network-level failures never reach gemini.Client's
// status-code retry loop with a response to classify).
var retryableConnErrors = []string{
	"connection reset", "broken pipe", "i/o timeout", "EOF",
	"no such host", "context deadline exceeded", "connection refused",
}

// retryableStatus is the fixed HTTP-status retry set from §4.9 step 4e.
var retryableStatus = map[int]bool{
	429: true, 500: true, 502: true, 503: true, 504: true, 404: true,
}

// Dispatcher wires the shared services a chat request needs, independent of
// whether the caller arrived via the OpenAI or native HTTP surface.
type Dispatcher struct {
	DB        *sql.DB
	Pool      *credential.Pool
	Guard     *quota.Guard
	Vault     *crypto.Vault
	Refresher *oauth.Refresher
	Resolver  *oauth.ProjectResolver
	Clients   map[storage.Variant]*gemini.Client
	Usage     *usage.Logger
	Cfg       func() config.Config
}

// Params describes one caller request, already parsed down to variant/model
// and a native-format request body.
type Params struct {
	UserID    int64
	Admin     bool
	Variant   storage.Variant
	BaseModel string // with thinking/search suffixes, suitable for gemini.Client's fallback/group logic
	Body      []byte // translator.Normalize output; model field carries the resolved upstream name
	Endpoint  string
	ClientIP  string
	UserAgent string
	Stream    bool
}

// Outcome is returned by Dispatch on success: the raw upstream HTTP response
// (caller is responsible for closing Body and, for the streaming case,
// copying it through the appropriate stream adapter).
type Outcome struct {
	Response     *http.Response
	CredentialID int64
	RetryCount   int
}

// ErrQuotaRejected is returned when the QuotaGuard denies the request.
type ErrQuotaRejected struct{ Rejection *quota.Rejection }

func (e *ErrQuotaRejected) Error() string { return "dispatcher: quota rejected: " + e.Rejection.Reason }

// Dispatch runs the full §4.9 state machine: quota check, in-flight usage
// log, acquire/refresh/resolve/call loop with credential-exclusion retry,
// and usage-log finalisation, which Dispatch performs itself on both the
// success and the failure path. The returned logID lets a streaming caller
// finalise the usage log again through FinalizeStream once the body has
// been fully copied.
func (d *Dispatcher) Dispatch(ctx context.Context, p Params) (*Outcome, int64, error) {
	group := models.Group(p.BaseModel)

	if !p.Admin {
		rej, err := d.Guard.Check(ctx, p.UserID, p.BaseModel, string(group), group == models.GroupTier3)
		if err != nil {
			return nil, 0, fmt.Errorf("dispatcher: quota check: %w", err)
		}
		if rej != nil {
			monitoring.QuotaRejectionsTotal.WithLabelValues(string(group), string(rej.Kind)).Inc()
			return nil, 0, &ErrQuotaRejected{Rejection: rej}
		}
	}

	logID, err := d.Usage.RecordPlaceholder(ctx, usage.PlaceholderParams{
		UserID:    p.UserID,
		Model:     string(p.Variant) + ":" + p.BaseModel,
		Endpoint:  p.Endpoint,
		ClientIP:  p.ClientIP,
		UserAgent: p.UserAgent,
	})
	if err != nil {
		log.WithError(err).Warn("dispatcher: failed to record placeholder usage log")
	}

	start := time.Now()
	outcome, lastCred, lastErr, retries := d.runLoop(ctx, p)

	if outcome != nil {
		if logID != 0 {
			d.finalize(ctx, logID, start, outcome.Response.StatusCode, &outcome.CredentialID, retries, "", "", "")
		}
		return outcome, logID, nil
	}

	kind, code, text := classifyFinal(lastErr)
	status := apperrors.ExtractStatus(text, http.StatusBadGateway)
	if kind == apperrors.KindNoCredential {
		status = http.StatusServiceUnavailable
	}
	if logID != 0 {
		var credID *int64
		if lastCred != nil {
			credID = &lastCred.ID
		}
		d.finalize(ctx, logID, start, status, credID, retries, string(kind), code, text)
	}

	surfaced := fmt.Sprintf("API call failed (retried %d times): %s", retries, text)
	if override, ok := d.resolveMessageOverride(ctx, kind, text); ok {
		surfaced = override
	}
	return nil, logID, &ErrUpstreamFailed{Status: status, Message: surfaced}
}

// ErrUpstreamFailed is returned when every retry attempt is exhausted. Status
// is the last attempted upstream HTTP status (for the caller-facing
// response), carried alongside Message rather than re-derived from it so an
// ErrorMessageRule override can replace the text without losing the status.
type ErrUpstreamFailed struct {
	Status  int
	Message string
}

func (e *ErrUpstreamFailed) Error() string { return e.Message }

// resolveMessageOverride applies the admin-configurable error_message_rules
// table (SPEC_FULL.md §3/§7) against the final classified error, returning
// the replacement message to surface to the caller instead of the raw
// "API call failed..." text.
func (d *Dispatcher) resolveMessageOverride(ctx context.Context, kind apperrors.Kind, text string) (string, bool) {
	rows, err := d.DB.QueryContext(ctx, `SELECT error_type, keyword, message, priority, active FROM error_message_rules WHERE active = true`)
	if err != nil {
		log.WithError(err).Debug("dispatcher: failed to load error message rules")
		return "", false
	}
	defer rows.Close()

	var rules []apperrors.MessageRule
	for rows.Next() {
		var r apperrors.MessageRule
		var errorType string
		if err := rows.Scan(&errorType, &r.Keyword, &r.Message, &r.Priority, &r.Active); err != nil {
			continue
		}
		r.Kind = apperrors.Kind(errorType)
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return "", false
	}
	return apperrors.ResolveMessage(rules, kind, text)
}

func (d *Dispatcher) finalize(ctx context.Context, logID int64, start time.Time, status int, credID *int64, retries int, errType, errCode, errMsg string) {
	if err := d.Usage.Finalize(ctx, logID, usage.FinalizeParams{
		StatusCode:   status,
		LatencyMS:    time.Since(start).Milliseconds(),
		CredentialID: credID,
		ErrorType:    errType,
		ErrorCode:    errCode,
		ErrorMessage: errMsg,
		RetryCount:   retries,
	}); err != nil {
		log.WithError(err).Warn("dispatcher: failed to finalize usage log")
	}
}

// FinalizeStream is called by streaming handlers once the stream generator
// has finished copying the body (or failed partway through), so the
// in-flight usage log does not remain orphaned at status=0 longer than
// necessary (SPEC_FULL.md §5's "use a fresh db.Conn, not the request-scoped
// one" guidance is honoured by Logger.Finalize issuing its own query against
// the shared *sql.DB connection pool rather than a transaction pinned to the
// request).
func (d *Dispatcher) FinalizeStream(ctx context.Context, logID int64, start time.Time, status int, credID int64) {
	if logID == 0 {
		return
	}
	d.finalize(ctx, logID, start, status, &credID, 0, "", "", "")
}

func (d *Dispatcher) runLoop(ctx context.Context, p Params) (*Outcome, *storage.Credential, error, int) {
	cfg := d.Cfg()
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var exclude []int64
	var lastErr error
	var lastCred *storage.Credential

	for attempt := 0; attempt <= maxRetries; attempt++ {
		cred, err := d.Pool.Acquire(ctx, credential.AcquireParams{
			UserID:     p.UserID,
			BaseModel:  p.BaseModel,
			ExcludeIDs: exclude,
			Variant:    p.Variant,
		})
		if err != nil {
			if err == credential.ErrNoCredential {
				return nil, lastCred, fmt.Errorf("no credential available"), attempt
			}
			return nil, lastCred, err, attempt
		}
		lastCred = cred

		resp, err := d.callOnce(ctx, cred, p)
		if err == nil && resp.StatusCode < 400 {
			return &Outcome{Response: resp, CredentialID: cred.ID, RetryCount: attempt}, cred, nil, attempt
		}

		text, status := describeFailure(resp, err)
		kind, code := apperrors.Classify(status, text)
		_ = code
		if herr := d.Pool.HandleFailure(ctx, cred.ID, kind, text); herr != nil {
			log.WithError(herr).Warn("dispatcher: handle_failure update failed")
		}
		if status == 429 {
			var retryAfter string
			if resp != nil {
				retryAfter = resp.Header.Get("Retry-After")
			}
			if _, herr := d.Pool.HandleRateLimit(ctx, cred.ID, p.BaseModel, retryAfter, text); herr != nil {
				log.WithError(herr).Warn("dispatcher: handle_rate_limit update failed")
			}
		}
		if resp != nil {
			resp.Body.Close()
		}

		lastErr = fmt.Errorf("%s", text)
		exclude = append(exclude, cred.ID)

		if !isRetryable(status, err) {
			return nil, cred, lastErr, attempt
		}
	}
	return nil, lastCred, lastErr, maxRetries
}

func describeFailure(resp *http.Response, err error) (text string, status int) {
	if err != nil {
		return err.Error(), 0
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(body), resp.StatusCode
}

func isRetryable(status int, err error) bool {
	if retryableStatus[status] {
		return true
	}
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, hint := range retryableConnErrors {
		if strings.Contains(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func classifyFinal(err error) (apperrors.Kind, string, string) {
	if err == nil {
		return apperrors.KindUnknown, "unknown_error", "unknown error"
	}
	text := err.Error()
	status := apperrors.ExtractStatus(text, 0)
	kind, code := apperrors.Classify(status, text)
	return kind, code, text
}

// callOnce resolves (access_token, project_id) for cred — refreshing and/or
// discovering as needed — then performs the single upstream call.
func (d *Dispatcher) callOnce(ctx context.Context, cred *storage.Credential, p Params) (*http.Response, error) {
	accessToken, err := d.resolveAccessToken(ctx, cred, p.Variant)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	projectID := cred.ProjectID
	if projectID == "" {
		projectID, err = d.Resolver.Resolve(ctx, accessToken)
		if err != nil {
			return nil, fmt.Errorf("project_id resolution failed: %w", err)
		}
		if serr := d.Pool.SetProjectID(ctx, cred.ID, projectID); serr != nil {
			log.WithError(serr).Warn("dispatcher: failed to persist discovered project_id")
		}
		cred.ProjectID = projectID
	}

	envelope := buildEnvelope(projectID, p.Body)

	client := d.Clients[p.Variant]
	if client == nil {
		return nil, fmt.Errorf("no upstream client configured for variant %s", p.Variant)
	}
	if p.Stream {
		return client.Stream(ctx, accessToken, envelope)
	}
	return client.Generate(ctx, accessToken, envelope)
}

// resolveAccessToken decrypts the cached access token if still fresh,
// otherwise exchanges the refresh token for a new one and persists it.
func (d *Dispatcher) resolveAccessToken(ctx context.Context, cred *storage.Credential, variant storage.Variant) (string, error) {
	accessToken, err := d.Vault.Decrypt(cred.AccessTokenCipher)
	if err != nil {
		return "", fmt.Errorf("decrypt access token: %w", err)
	}
	if !oauth.NeedsRefresh(accessToken, cred.AccessTokenExpiry, time.Now().UTC()) {
		return accessToken, nil
	}

	refreshToken, err := d.Vault.Decrypt(cred.RefreshTokenCipher)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", fmt.Errorf("credential %d has no refresh token", cred.ID)
	}

	creds := d.resolveClientCredentials(cred, variant)

	result, err := d.Refresher.Refresh(ctx, fmt.Sprint(cred.ID), creds, refreshToken)
	if err != nil {
		monitoring.CredentialErrors.WithLabelValues(fmt.Sprint(cred.ID), "token_refresh").Inc()
		monitoring.CredentialRefreshes.WithLabelValues(fmt.Sprint(cred.ID), "failure").Inc()
		return "", err
	}
	monitoring.CredentialRefreshes.WithLabelValues(fmt.Sprint(cred.ID), "success").Inc()

	accessCipher, err := d.Vault.Encrypt(result.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	var refreshCipher string
	if result.RefreshToken != "" {
		refreshCipher, err = d.Vault.Encrypt(result.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("encrypt rotated refresh token: %w", err)
		}
	}
	if err := d.Pool.SetTokens(ctx, cred.ID, accessCipher, result.ExpiresAt, refreshCipher); err != nil {
		log.WithError(err).Warn("dispatcher: failed to persist refreshed tokens")
	}
	cred.AccessTokenCipher = accessCipher
	cred.AccessTokenExpiry = &result.ExpiresAt

	return result.AccessToken, nil
}

func (d *Dispatcher) resolveClientCredentials(cred *storage.Credential, variant storage.Variant) oauth.ClientCredentials {
	var local oauth.ClientCredentials
	if cred.ClientIDCipher != "" {
		id, _ := d.Vault.Decrypt(cred.ClientIDCipher)
		secret, _ := d.Vault.Decrypt(cred.ClientSecretCipher)
		local = oauth.ClientCredentials{ClientID: id, ClientSecret: secret}
	}

	cfg := d.Cfg()
	global := oauth.ClientCredentials{ClientID: cfg.OAuthDefault.ClientID, ClientSecret: cfg.OAuthDefault.ClientSecret}
	variantDefault := global
	if variant == storage.VariantB {
		variantDefault = oauth.ClientCredentials{ClientID: cfg.OAuthUpstreamB.ClientID, ClientSecret: cfg.OAuthUpstreamB.ClientSecret}
	}

	return oauth.ResolveClientCredentials(local, variantDefault, global)
}
