// Package usage implements UsageLogger (SPEC_FULL.md §4.10): an in-flight
// placeholder row inserted before the upstream call, finalised with the
// outcome once it completes, plus a best-effort pub/sub notification over
// internal/events so UI listeners can react without polling the DB.
// Grounded on the Dispatcher flow's placeholder/finalise split described in
// SPEC_FULL.md §4.9 and on original_source/routers/proxy.py's usage-log
// bookkeeping around each upstream call.
package usage

import (
	"context"
	"database/sql"
	"fmt"

	"gcligateway/internal/events"
	"gcligateway/internal/monitoring"
)

// Logger records usage_logs rows and publishes finalisation events.
type Logger struct {
	db  *sql.DB
	hub *events.Hub
}

// NewLogger constructs a Logger. hub may be nil, in which case finalisation
// notifications are silently skipped.
func NewLogger(db *sql.DB, hub *events.Hub) *Logger {
	return &Logger{db: db, hub: hub}
}

// PlaceholderParams describes the request metadata known before the
// upstream call is made.
type PlaceholderParams struct {
	UserID    int64
	Model     string
	Endpoint  string
	ClientIP  string
	UserAgent string
}

// RecordPlaceholder inserts an in-flight usage_logs row (status_code=0) and
// returns its id. The Dispatcher creates this before any upstream call so
// RPM counting in the quota guard is correctly inclusive of in-flight
// requests (SPEC_FULL.md §5).
func (l *Logger) RecordPlaceholder(ctx context.Context, p PlaceholderParams) (int64, error) {
	var id int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO usage_logs (user_id, model, endpoint, status_code, client_ip, user_agent)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id
	`, p.UserID, p.Model, p.Endpoint, p.ClientIP, p.UserAgent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("usage: record placeholder: %w", err)
	}
	return id, nil
}

// FinalizeParams describes the outcome of the upstream call attached to a
// placeholder row.
type FinalizeParams struct {
	StatusCode       int
	LatencyMS        int64
	CredentialID     *int64
	ErrorType        string
	ErrorCode        string
	ErrorMessage     string
	CooldownSecs     int
	RetryCount       int
	PromptTokens     int64
	CompletionTokens int64
}

// Finalize updates the placeholder row with the final outcome and publishes
// a best-effort TopicUsageFinalized event. Credential.total_requests and
// last_used_at are NOT touched here: internal/credential.Pool.Acquire
// stamps both at selection time, before the upstream call is even made, so
// re-bumping them on finalisation would double-count every successful
// request (see DESIGN.md).
func (l *Logger) Finalize(ctx context.Context, logID int64, p FinalizeParams) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE usage_logs
		SET status_code = $2, latency_ms = $3, credential_id = $4, error_type = $5,
		    error_code = $6, error_message = $7, cooldown_secs = $8, retry_count = $9
		WHERE id = $1
	`, logID, p.StatusCode, p.LatencyMS, p.CredentialID, p.ErrorType, p.ErrorCode,
		p.ErrorMessage, p.CooldownSecs, p.RetryCount)
	if err != nil {
		return fmt.Errorf("usage: finalize: %w", err)
	}

	if p.PromptTokens > 0 || p.CompletionTokens > 0 {
		model := l.modelForLog(ctx, logID)
		monitoring.TokensUsed.WithLabelValues(model, "prompt").Add(float64(p.PromptTokens))
		monitoring.TokensUsed.WithLabelValues(model, "completion").Add(float64(p.CompletionTokens))
		monitoring.TokensUsed.WithLabelValues(model, "total").Add(float64(p.PromptTokens + p.CompletionTokens))
	}

	if l.hub != nil {
		l.hub.Publish(ctx, events.TopicUsageFinalized, map[string]interface{}{
			"log_id":      logID,
			"status_code": p.StatusCode,
			"latency_ms":  p.LatencyMS,
		}, nil)
	}
	return nil
}

func (l *Logger) modelForLog(ctx context.Context, logID int64) string {
	var model string
	_ = l.db.QueryRowContext(ctx, `SELECT model FROM usage_logs WHERE id = $1`, logID).Scan(&model)
	return model
}
