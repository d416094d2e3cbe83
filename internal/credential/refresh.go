package credential

import (
	"context"
	"fmt"
	"time"
)

// SetTokens persists a freshly refreshed access token (and, if the upstream
// rotated it, a new refresh token) for credID. Called by the Dispatcher
// after oauth.Refresher.Refresh succeeds (SPEC_FULL.md §4.3).
func (p *Pool) SetTokens(ctx context.Context, credID int64, accessTokenCipher string, expiresAt time.Time, refreshTokenCipher string) error {
	if refreshTokenCipher == "" {
		_, err := p.db.ExecContext(ctx, `
			UPDATE credentials SET access_token_cipher = $2, access_token_expiry = $3 WHERE id = $1
		`, credID, accessTokenCipher, expiresAt)
		if err != nil {
			return fmt.Errorf("credential: set tokens: %w", err)
		}
		return nil
	}

	_, err := p.db.ExecContext(ctx, `
		UPDATE credentials
		SET access_token_cipher = $2, access_token_expiry = $3, refresh_token_cipher = $4
		WHERE id = $1
	`, credID, accessTokenCipher, expiresAt, refreshTokenCipher)
	if err != nil {
		return fmt.Errorf("credential: set tokens (rotated refresh token): %w", err)
	}
	return nil
}

// SetProjectID persists the project_id discovered by oauth.ProjectResolver
// on a credential's first use (SPEC_FULL.md §4.4, §3 invariant 1).
func (p *Pool) SetProjectID(ctx context.Context, credID int64, projectID string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE credentials SET project_id = $2 WHERE id = $1`, credID, projectID)
	if err != nil {
		return fmt.Errorf("credential: set project id: %w", err)
	}
	return nil
}
