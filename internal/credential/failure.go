package credential

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "gcligateway/internal/errors"
	"gcligateway/internal/models"
	"gcligateway/internal/monitoring"
	"gcligateway/internal/storage"
)

const maxErrorMessageLen = 200

func truncate(s string) string {
	if len(s) <= maxErrorMessageLen {
		return s
	}
	return s[:maxErrorMessageLen] + "..."
}

// HandleFailure increments failed_requests and records last_error. Auth
// failures (401/403/PERMISSION_DENIED) disable the credential outright; if
// the credential is public and user-owned, its owner's reward quota is
// debited (flash+pro for tier-2.5, plus tier3 for tier-3), clamped at zero.
func (p *Pool) HandleFailure(ctx context.Context, credID int64, kind apperrors.Kind, errText string) error {
	disable := kind == apperrors.KindAuthError

	_, err := p.db.ExecContext(ctx, `
		UPDATE credentials
		SET failed_requests = failed_requests + 1,
		    last_error = $2,
		    active = CASE WHEN $3 THEN false ELSE active END
		WHERE id = $1
	`, credID, truncate(errText), disable)
	if err != nil {
		return fmt.Errorf("credential: handle_failure: %w", err)
	}

	if disable {
		monitoring.CredentialErrors.WithLabelValues(fmt.Sprint(credID), "auth_error").Inc()
		if err := p.debitReward(ctx, credID); err != nil {
			return err
		}
	} else {
		monitoring.CredentialErrors.WithLabelValues(fmt.Sprint(credID), string(kind)).Inc()
	}
	return nil
}

// debitReward deducts reward quota from a disabled public credential's
// owner's bonus_quota counter, clamped to zero. Only applies to user-owned
// public credentials. The per-user quota_flash/quota_pro/quota_tier3 columns
// are admin-set overrides (§4.5 "Reward accounting") and are never touched
// here; the deduction amount is flash_per_cred + pro_per_cred for a
// tier-2.5 credential, plus tier3_per_cred for a tier-3 one, mirroring
// original_source/services/credential_pool.py's
// `settings.quota_flash + settings.quota_25pro (+ quota_30pro)`.
func (p *Pool) debitReward(ctx context.Context, credID int64) error {
	var userID sql.NullInt64
	var public bool
	var tier string
	err := p.db.QueryRowContext(ctx, `SELECT user_id, public, model_tier FROM credentials WHERE id = $1`, credID).
		Scan(&userID, &public, &tier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("credential: debit reward lookup: %w", err)
	}
	if !userID.Valid || !public {
		return nil
	}

	q := p.quota()
	deduct := q.FlashPerCredential + q.ProPerCredential
	if tier == "3" {
		deduct += q.Tier3PerCredential
	}

	_, err = p.db.ExecContext(ctx, `
		UPDATE users SET bonus_quota = GREATEST(COALESCE(bonus_quota, 0) - $2, 0)
		WHERE id = $1
	`, userID.Int64, deduct)
	if err != nil {
		return fmt.Errorf("credential: debit reward: %w", err)
	}
	return nil
}

var (
	retryDelaySeconds = regexp.MustCompile(`"retryDelay":"(\d+)s"`)
	retryAfterSecText = regexp.MustCompile(`retry after (\d+) seconds?`)
	bareSecondsText   = regexp.MustCompile(`(\d+) seconds?`)
)

const defaultRetryDelay = 60 * time.Second

// ParseRetryDelay determines the upstream-requested retry delay from, in
// order: the Retry-After header, a `"retryDelay":"Ns"` field in the error
// text, a `retry after N seconds` phrase, or a bare `N seconds` phrase.
// Defaults to 60s if none are found.
func ParseRetryDelay(retryAfterHeader, errText string) time.Duration {
	if retryAfterHeader != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(retryAfterHeader)); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	if m := retryDelaySeconds.FindStringSubmatch(errText); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if m := retryAfterSecText.FindStringSubmatch(strings.ToLower(errText)); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if m := bareSecondsText.FindStringSubmatch(strings.ToLower(errText)); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultRetryDelay
}

// HandleRateLimit installs a cooldown for credID/group by back-dating
// last_used_at[group] so that now + retryDelay becomes the effective
// cooldown expiry under the normal (now - last_used_at[g] < cd_g) check:
// last_used_at[g] = now + retryDelay - cd_g. Returns the parsed delay.
func (p *Pool) HandleRateLimit(ctx context.Context, credID int64, baseModel, retryAfterHeader, errText string) (time.Duration, error) {
	group := models.Group(baseModel)
	delay := ParseRetryDelay(retryAfterHeader, errText)
	cd := cooldownFor(group, p.cooldown())

	backdated := time.Now().UTC().Add(delay).Add(-cd)

	lastUsed := storage.LastUsedMap{}
	row := p.db.QueryRowContext(ctx, `SELECT last_used_by_group FROM credentials WHERE id = $1`, credID)
	if err := row.Scan(&lastUsed); err != nil && err != sql.ErrNoRows {
		return delay, fmt.Errorf("credential: handle_rate_limit lookup: %w", err)
	}
	lastUsed[string(group)] = backdated

	_, err := p.db.ExecContext(ctx, `
		UPDATE credentials SET last_used_by_group = $2, last_error = $3 WHERE id = $1
	`, credID, lastUsed, truncate(errText))
	if err != nil {
		return delay, fmt.Errorf("credential: handle_rate_limit: %w", err)
	}
	return delay, nil
}
