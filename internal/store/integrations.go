package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/profile"
	"go.uber.org/zap"
)

// IntegrationRow is an integration as written by the connection flow.
// Token is plaintext in memory and encrypted in the database.
type IntegrationRow struct {
	UserID      string
	Provider    string
	Category    string
	Status      access.IntegrationStatus
	AccessLevel string
	Token       string
	BaseURL     string
}

// SaveIntegration upserts the (user, provider) integration.
func (s *Store) SaveIntegration(ctx context.Context, r *IntegrationRow) error {
	tokenEnc, err := encrypt(r.Token, tokenAAD(r.UserID, r.Provider))
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	level := r.AccessLevel
	if level == "" {
		level = access.LevelReadWrite.String()
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO integrations (user_id, provider, category, status, access_level, token_enc, base_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			access_level = EXCLUDED.access_level,
			token_enc = EXCLUDED.token_enc,
			base_url = EXCLUDED.base_url,
			updated_at = NOW()`,
		r.UserID, r.Provider, r.Category, string(r.Status), level, tokenEnc, r.BaseURL,
	)
	if err != nil {
		return fmt.Errorf("save integration %s/%s: %w", r.UserID, r.Provider, err)
	}
	return nil
}

// ListConnectedIntegrations returns the user's connected integrations
// without tokens.
func (s *Store) ListConnectedIntegrations(ctx context.Context, userID string) ([]access.IntegrationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id, provider, category, status, access_level
		FROM integrations
		WHERE user_id = $1 AND status = 'connected'
		ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []access.IntegrationRecord
	for rows.Next() {
		var r access.IntegrationRecord
		var status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Provider, &r.Category, &status, &r.AccessLevel); err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		r.Status = access.IntegrationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCredentials returns connected integrations with decrypted tokens.
// A row whose token cannot be decrypted is skipped and logged without the value.
func (s *Store) ListCredentials(ctx context.Context, userID string) ([]profile.StoredCredential, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id, provider, category, status, access_level, token_enc, base_url
		FROM integrations
		WHERE user_id = $1 AND status = 'connected'
		ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []profile.StoredCredential
	for rows.Next() {
		var c profile.StoredCredential
		var status string
		var tokenEnc []byte
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.Category, &status,
			&c.AccessLevel, &tokenEnc, &c.BaseURL); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.Status = access.IntegrationStatus(status)
		c.Token, err = decrypt(tokenEnc, tokenAAD(c.UserID, c.Provider))
		if err != nil {
			s.logger.Warn("skipping integration with unreadable token",
				zap.String("id", c.ID), zap.String("provider", c.Provider), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
