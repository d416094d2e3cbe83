// Package storage owns the Postgres connection pool, embedded schema
// migrations, and the entity types mirroring SPEC_FULL.md §3.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Variant is the upstream this credential/request targets.
type Variant string

const (
	VariantA Variant = "UpstreamA"
	VariantB Variant = "UpstreamB"
)

// CredentialKind distinguishes OAuth-refreshable credentials from static
// API-key credentials.
type CredentialKind string

const (
	CredentialOAuth  CredentialKind = "oauth"
	CredentialAPIKey CredentialKind = "api_key"
)

// ModelTier is the upstream tier a credential may serve.
type ModelTier string

const (
	Tier25 ModelTier = "2.5"
	Tier3  ModelTier = "3"
)

// LastUsedMap is a per-model-group last-used-at timestamp map, stored as
// JSONB. Keys are "flash"/"pro"/"tier3".
type LastUsedMap map[string]time.Time

// Value implements driver.Valuer for JSONB storage.
func (m LastUsedMap) Value() (driver.Value, error) {
	if m == nil {
		m = LastUsedMap{}
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage.
func (m *LastUsedMap) Scan(src interface{}) error {
	if src == nil {
		*m = LastUsedMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*m = LastUsedMap{}
		return nil
	}
	if len(raw) == 0 {
		*m = LastUsedMap{}
		return nil
	}
	out := LastUsedMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// User mirrors the `users` table.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Admin        bool
	Active       bool
	QuotaFlash   *int
	QuotaPro     *int
	QuotaTier3   *int
	BonusQuota   int
	CreatedAt    time.Time
}

// ApiKey mirrors the `api_keys` table.
type ApiKey struct {
	ID         int64
	UserID     int64
	Secret     string
	Active     bool
	LastUsedAt *time.Time
}

// Credential mirrors the `credentials` table.
type Credential struct {
	ID                 int64
	UserID             *int64
	Variant            Variant
	Kind               CredentialKind
	RefreshTokenCipher string
	AccessTokenCipher  string
	APIKeyCipher       string
	ClientIDCipher     string
	ClientSecretCipher string
	AccessTokenExpiry  *time.Time
	ProjectID          string
	ModelTier          ModelTier
	AccountClass       string
	Active             bool
	Public             bool
	LastUsedAt         *time.Time
	LastUsedByGroup    LastUsedMap
	TotalRequests      int64
	FailedRequests     int64
	LastError          string
	CreatedAt          time.Time
}

// UsageLog mirrors the `usage_logs` table.
type UsageLog struct {
	ID            int64
	UserID        int64
	CredentialID  *int64
	Model         string
	Endpoint      string
	StatusCode    int
	LatencyMS     int64
	ErrorType     string
	ErrorCode     string
	ErrorMessage  string
	CooldownSecs  int
	RequestSnippet string
	RetryCount    int
	ClientIP      string
	UserAgent     string
	CreatedAt     time.Time
}

// SystemConfig mirrors the `system_config` key-value table.
type SystemConfig struct {
	Key   string
	Value string
}

// ErrorMessageRule mirrors the `error_message_rules` table.
type ErrorMessageRule struct {
	ID       int64
	ErrorType string
	Keyword  string
	Message  string
	Priority int
	Active   bool
}
