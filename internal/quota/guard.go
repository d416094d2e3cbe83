// Package quota implements QuotaGuard (SPEC_FULL.md §4.6): per-request RPM
// and daily-bucket enforcement, plus the reward-accounting read-time
// formulas from §4.5. Grounded on original_source/routers/proxy.py's quota
// checks and the teacher's database/sql query style.
package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "gcligateway/internal/errors"
	"gcligateway/internal/config"
)

// Guard evaluates RPM, daily-bucket, and tier-3-eligibility limits.
type Guard struct {
	db  *sql.DB
	cfg func() config.QuotaConfig
}

// NewGuard constructs a Guard backed by db, reading quota constants from cfg
// on every call so config hot-reloads apply without a restart.
func NewGuard(db *sql.DB, cfg func() config.QuotaConfig) *Guard {
	return &Guard{db: db, cfg: cfg}
}

// Rejection describes why a request was denied.
type Rejection struct {
	Kind    apperrors.Kind
	Reason  string
}

// Reward is the read-time effective quota computed from a user's owned
// credentials and any admin overrides (§4.5).
type Reward struct {
	Flash        int
	Pro          int
	Tier3Allowed bool
}

// dayBoundary returns the most recent 07:00 UTC instant at or before now.
func dayBoundary(now time.Time) time.Time {
	now = now.UTC()
	b := time.Date(now.Year(), now.Month(), now.Day(), 7, 0, 0, 0, time.UTC)
	if now.Before(b) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// computeReward implements the §4.5 effective-daily-quota formulas.
func computeReward(user userQuotaRow, activeCredCount, tier3CredCount int, q config.QuotaConfig) Reward {
	var flash int
	switch {
	case user.QuotaFlash != nil:
		flash = *user.QuotaFlash
	case activeCredCount > 0:
		flash = activeCredCount * q.FlashPerCredential
	default:
		flash = q.NoCredFlash
	}

	var pro int
	switch {
	case user.QuotaPro != nil:
		pro = *user.QuotaPro
	case tier3CredCount > 0:
		pro = tier3CredCount * q.Tier3PerCredential
	case activeCredCount > 0:
		pro = activeCredCount * q.ProPerCredential
	default:
		pro = q.NoCredPro
	}

	tier3Allowed := tier3CredCount > 0 || (user.QuotaTier3 != nil && *user.QuotaTier3 > 0)

	return Reward{Flash: flash, Pro: pro, Tier3Allowed: tier3Allowed}
}

type userQuotaRow struct {
	Admin      bool
	QuotaFlash *int
	QuotaPro   *int
	QuotaTier3 *int
}

// Check runs the full RPM / daily-bucket / tier-3-eligibility evaluation for
// userID issuing a request for baseModel (the un-prefixed model name) and
// modelGroup ("flash"/"pro"/"tier3"). Returns nil if the request is allowed.
func (g *Guard) Check(ctx context.Context, userID int64, baseModel, modelGroup string, isTier3 bool) (*Rejection, error) {
	var user userQuotaRow
	err := g.db.QueryRowContext(ctx, `
		SELECT admin, quota_flash, quota_pro, quota_tier3 FROM users WHERE id = $1
	`, userID).Scan(&user.Admin, &user.QuotaFlash, &user.QuotaPro, &user.QuotaTier3)
	if err != nil {
		return nil, fmt.Errorf("quota: load user: %w", err)
	}
	if user.Admin {
		return nil, nil
	}

	var hasPublic bool
	if err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM credentials WHERE user_id = $1 AND public = true)
	`, userID).Scan(&hasPublic); err != nil {
		return nil, fmt.Errorf("quota: check public ownership: %w", err)
	}

	cfg := g.cfg()

	if rej, err := g.checkRPM(ctx, userID, hasPublic, cfg); err != nil || rej != nil {
		return rej, err
	}

	var activeCredCount, tier3CredCount int
	if err := g.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE active), COUNT(*) FILTER (WHERE active AND model_tier = '3')
		FROM credentials WHERE user_id = $1
	`, userID).Scan(&activeCredCount, &tier3CredCount); err != nil {
		return nil, fmt.Errorf("quota: count credentials: %w", err)
	}
	reward := computeReward(user, activeCredCount, tier3CredCount, cfg)

	if isTier3 && !reward.Tier3Allowed {
		return &Rejection{Kind: apperrors.KindAuthError, Reason: "no tier-3 quota"}, nil
	}

	if rej, err := g.checkDailyBucket(ctx, userID, modelGroup, reward, cfg); err != nil || rej != nil {
		return rej, err
	}

	return nil, nil
}

func (g *Guard) checkRPM(ctx context.Context, userID int64, hasPublic bool, cfg config.QuotaConfig) (*Rejection, error) {
	limit := cfg.BaseRPM
	if hasPublic {
		limit = cfg.ContributorRPM
	}

	var count int
	if err := g.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_logs WHERE user_id = $1 AND created_at >= $2
	`, userID, time.Now().UTC().Add(-time.Minute)).Scan(&count); err != nil {
		return nil, fmt.Errorf("quota: count rpm: %w", err)
	}

	if count >= limit {
		return &Rejection{Kind: apperrors.KindRateLimit, Reason: "rpm limit exceeded"}, nil
	}
	return nil, nil
}

// modelLikePatterns maps a model group to the SQL LIKE patterns matched
// against usage_logs.model, per §4.6.
var modelLikePatterns = map[string][]string{
	"flash": {"%flash%"},
	"pro":   {"%pro%"},
	"tier3": {"%-3-%", "%tier3%"},
}

func (g *Guard) checkDailyBucket(ctx context.Context, userID int64, modelGroup string, reward Reward, cfg config.QuotaConfig) (*Rejection, error) {
	boundary := dayBoundary(time.Now())

	var total int
	if err := g.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_logs WHERE user_id = $1 AND created_at >= $2
	`, userID, boundary).Scan(&total); err != nil {
		return nil, fmt.Errorf("quota: count daily total: %w", err)
	}
	if total >= cfg.DailyQuota {
		return &Rejection{Kind: apperrors.KindQuotaExhausted, Reason: "daily quota exhausted"}, nil
	}

	var classLimit int
	switch modelGroup {
	case "flash":
		classLimit = reward.Flash
	case "pro", "tier3":
		classLimit = reward.Pro
	default:
		classLimit = reward.Flash
	}

	patterns, ok := modelLikePatterns[modelGroup]
	if !ok {
		return nil, nil
	}

	var classCount int
	query := `SELECT COUNT(*) FROM usage_logs WHERE user_id = $1 AND created_at >= $2 AND (`
	args := []any{userID, boundary}
	for i, p := range patterns {
		if i > 0 {
			query += " OR "
		}
		args = append(args, p)
		query += fmt.Sprintf("model LIKE $%d", len(args))
	}
	query += ")"
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&classCount); err != nil {
		return nil, fmt.Errorf("quota: count daily class: %w", err)
	}
	if classCount >= classLimit {
		return &Rejection{Kind: apperrors.KindQuotaExhausted, Reason: fmt.Sprintf("%s quota exhausted", modelGroup)}, nil
	}

	return nil, nil
}
