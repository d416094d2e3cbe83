// Package oauth implements TokenRefresher (SPEC_FULL.md §4.3) and
// ProjectResolver (§4.4), adapted from the teacher's internal/oauth/manager.go
// RefreshToken method and functional-options idiom. The interactive
// authorization-code/PKCE login flow the teacher also implements is not
// needed here — this system only ever exchanges a stored refresh-token for a
// fresh access-token — so it is not carried over.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// ClientCredentials is a client-id/secret pair.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// TokenResponse mirrors the OAuth2 token endpoint's JSON response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RefresherOption configures a Refresher, mirroring the teacher's
// ManagerOption functional-options pattern.
type RefresherOption func(*Refresher)

// WithHTTPClient overrides the HTTP client used to call the token endpoint.
func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) { r.httpClient = c }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) RefresherOption {
	return func(r *Refresher) { r.tokenURL = u }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) RefresherOption {
	return func(r *Refresher) { r.now = now }
}

// Refresher exchanges a refresh-token for a fresh access-token, collapsing
// concurrent refreshes for the same credential via singleflight (R3).
type Refresher struct {
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time
	group      singleflight.Group
}

// NewRefresher constructs a Refresher with sane defaults.
func NewRefresher(opts ...RefresherOption) *Refresher {
	r := &Refresher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokenURL:   defaultTokenURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of a successful refresh.
type Result struct {
	AccessToken  string
	RefreshToken string // empty unless the upstream rotated it
	ExpiresAt    time.Time
}

// Refresh exchanges refreshToken for a new access token using creds.
// Concurrent calls sharing the same dedupKey (normally the credential id)
// collapse into a single upstream call; every caller receives the winner's
// result (R3: either may win, the loser's result is discarded by its caller
// overwriting the row with the same winning values is harmless).
func (r *Refresher) Refresh(ctx context.Context, dedupKey string, creds ClientCredentials, refreshToken string) (Result, error) {
	v, err, _ := r.group.Do(dedupKey, func() (interface{}, error) {
		return r.doRefresh(ctx, creds, refreshToken)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (r *Refresher) doRefresh(ctx context.Context, creds ClientCredentials, refreshToken string) (Result, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("oauth: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("oauth: refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("oauth: refresh failed with status %d", resp.StatusCode)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("oauth: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Result{}, fmt.Errorf("oauth: refresh response missing access_token")
	}

	return Result{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    r.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// NeedsRefresh reports whether a cached access token should be refreshed:
// true if absent or within 5 minutes of its recorded expiry.
func NeedsRefresh(accessToken string, expiresAt *time.Time, now time.Time) bool {
	if accessToken == "" || expiresAt == nil {
		return true
	}
	return now.Add(5 * time.Minute).After(*expiresAt)
}

// ResolveClientCredentials implements the precedence order from
// SPEC_FULL.md §4.3: credential-local pair, then variant-specific default,
// then variant-agnostic default.
func ResolveClientCredentials(credentialLocal, variantDefault, globalDefault ClientCredentials) ClientCredentials {
	if credentialLocal.ClientID != "" && credentialLocal.ClientSecret != "" {
		return credentialLocal
	}
	if variantDefault.ClientID != "" && variantDefault.ClientSecret != "" {
		return variantDefault
	}
	return globalDefault
}
