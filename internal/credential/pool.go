// Package credential implements CredentialPool: DB-backed selection,
// cooldown bookkeeping, and failure/reward accounting for the shared OAuth
// credential pool (SPEC_FULL.md §4.5). Grounded on
// original_source/services/credential_pool.py's query/update pattern,
// translated into literal parameterized SQL — not on the teacher's
// in-memory round-robin scheme, since selection must query the DB on every
// call (spec.md §9).
package credential

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gcligateway/internal/config"
	"gcligateway/internal/models"
	"gcligateway/internal/monitoring"
	"gcligateway/internal/storage"
)

// ErrNoCredential is returned by Acquire when no candidate credential exists
// for the given filters.
var ErrNoCredential = fmt.Errorf("credential: no credential available")

// Pool selects and mutates credential rows in Postgres.
type Pool struct {
	db       *sql.DB
	cooldown func() config.CooldownConfig
	poolMode func() config.PoolMode
	quota    func() config.QuotaConfig
}

// NewPool constructs a Pool. cooldown, poolMode and quota are read on every
// call so config hot-reloads (fsnotify) take effect without restart.
func NewPool(db *sql.DB, cooldown func() config.CooldownConfig, poolMode func() config.PoolMode, quota func() config.QuotaConfig) *Pool {
	return &Pool{db: db, cooldown: cooldown, poolMode: poolMode, quota: quota}
}

// AcquireParams is the input to Acquire.
type AcquireParams struct {
	UserID     int64
	HasPublic  bool // true if the user owns at least one active public credential
	BaseModel  string
	ExcludeIDs []int64
	Variant    storage.Variant
}

// Acquire selects and stamps one credential for use, per SPEC_FULL.md §4.5.
// It queries the DB on every call and mutates last_used_at/total_requests
// within the same transaction as the selecting query.
func (p *Pool) Acquire(ctx context.Context, params AcquireParams) (*storage.Credential, error) {
	group := models.Group(params.BaseModel)
	tier := storage.Tier25
	if group == models.GroupTier3 {
		tier = storage.Tier3
	}

	query, args := buildSelectionQuery(params, tier, p.poolMode())

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("credential: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("credential: selection query: %w", err)
	}
	candidates, err := scanCredentials(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCredential
	}

	cd := p.cooldown()
	chosen := pickCandidate(candidates, group, cd)

	if err := p.stamp(ctx, tx, chosen, group); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("credential: commit: %w", err)
	}

	monitoring.CredentialRotationsTotal.WithLabelValues(fmt.Sprint(chosen.ID)).Inc()
	return chosen, nil
}

// pickCandidate chooses the first available (not-in-cooldown) candidate from
// a slice already ordered by last_used_at ASC NULLS FIRST; if none are
// available it fails open and returns the least-recently-used candidate
// (candidates[0]) regardless of cooldown.
func pickCandidate(candidates []*storage.Credential, group models.ModelGroup, cd config.CooldownConfig) *storage.Credential {
	now := time.Now().UTC()
	groupCooldown := cooldownFor(group, cd)

	for _, c := range candidates {
		last, ok := c.LastUsedByGroup[string(group)]
		if !ok || now.Sub(last) >= groupCooldown {
			return c
		}
	}
	return candidates[0]
}

func cooldownFor(group models.ModelGroup, cd config.CooldownConfig) time.Duration {
	switch group {
	case models.GroupPro:
		return cd.Pro
	case models.GroupTier3:
		return cd.Tier3
	default:
		return cd.Flash
	}
}

func (p *Pool) stamp(ctx context.Context, tx *sql.Tx, cred *storage.Credential, group models.ModelGroup) error {
	now := time.Now().UTC()
	if cred.LastUsedByGroup == nil {
		cred.LastUsedByGroup = storage.LastUsedMap{}
	}
	cred.LastUsedByGroup[string(group)] = now
	cred.LastUsedAt = &now
	cred.TotalRequests++

	_, err := tx.ExecContext(ctx, `
		UPDATE credentials
		SET last_used_at = $2, last_used_by_group = $3, total_requests = total_requests + 1
		WHERE id = $1
	`, cred.ID, now, cred.LastUsedByGroup)
	if err != nil {
		return fmt.Errorf("credential: stamp: %w", err)
	}
	return nil
}

// buildSelectionQuery compiles the filters from SPEC_FULL.md §4.5 into one
// parameterised SQL statement. FOR UPDATE SKIP LOCKED lets concurrent
// selectors avoid preferring the identical row without violating the
// tolerance for duplicate selection under contention (§5).
func buildSelectionQuery(params AcquireParams, tier storage.ModelTier, mode config.PoolMode) (string, []any) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT id, user_id, variant, kind, refresh_token_cipher, access_token_cipher,
		api_key_cipher, client_id_cipher, client_secret_cipher, access_token_expiry, project_id,
		model_tier, account_class, active, public, last_used_at, last_used_by_group,
		total_requests, failed_requests, last_error, created_at
		FROM credentials WHERE active = true AND project_id <> '' AND variant = ` + arg(string(params.Variant)))

	if len(params.ExcludeIDs) > 0 {
		sb.WriteString(" AND id <> ALL(" + arg(pqInt64Array(params.ExcludeIDs)) + "::bigint[])")
	}

	if tier == storage.Tier3 {
		sb.WriteString(" AND model_tier = " + arg(string(storage.Tier3)))
	}

	sb.WriteString(" AND (" + sharingScopeSQL(params, tier, mode, arg) + ")")
	sb.WriteString(" ORDER BY last_used_at ASC NULLS FIRST FOR UPDATE SKIP LOCKED")

	return sb.String(), args
}

func sharingScopeSQL(params AcquireParams, tier storage.ModelTier, mode config.PoolMode, arg func(any) string) string {
	userArg := arg(params.UserID)
	switch mode {
	case config.PoolTier3Shared:
		if tier != storage.Tier3 {
			// Non-tier-3 requests: public credentials are always reachable.
			return fmt.Sprintf("user_id = %s OR public = true", userArg)
		}
		// Tier-3 requests: donor-gated sharing.
		return fmt.Sprintf(
			"user_id = %s OR (public = true AND EXISTS (SELECT 1 FROM credentials d WHERE d.user_id = %s AND d.active = true AND d.model_tier = '3'))",
			userArg, userArg,
		)
	case config.PoolFullShared:
		// Donor condition: any public credential owned by the user, regardless
		// of tier match (implemented exactly as the source does — see
		// DESIGN.md Open Question).
		return fmt.Sprintf(
			"user_id = %s OR (public = true AND EXISTS (SELECT 1 FROM credentials d WHERE d.user_id = %s AND d.public = true AND d.active = true))",
			userArg, userArg,
		)
	default: // PoolPrivate
		return fmt.Sprintf("user_id = %s", userArg)
	}
}

// pqInt64Array renders int64s as a Postgres array literal for `<> ALL($n::bigint[])`.
func pqInt64Array(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func scanCredentials(rows *sql.Rows) ([]*storage.Credential, error) {
	var out []*storage.Credential
	for rows.Next() {
		c := &storage.Credential{}
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Variant, &c.Kind, &c.RefreshTokenCipher, &c.AccessTokenCipher,
			&c.APIKeyCipher, &c.ClientIDCipher, &c.ClientSecretCipher, &c.AccessTokenExpiry, &c.ProjectID,
			&c.ModelTier, &c.AccountClass, &c.Active, &c.Public, &c.LastUsedAt, &c.LastUsedByGroup,
			&c.TotalRequests, &c.FailedRequests, &c.LastError, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("credential: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
