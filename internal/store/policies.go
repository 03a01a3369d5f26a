package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/profile"
	"go.uber.org/zap"
)

// OrgPolicy returns the organization's category policy. found is false when
// the organization has no policy rows at all. Rows with unknown categories
// or levels are skipped.
func (s *Store) OrgPolicy(ctx context.Context, orgID string) (access.OrgPolicy, bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT category, policy FROM org_integration_policies WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, false, fmt.Errorf("query org policy: %w", err)
	}
	defer rows.Close()

	policy := access.OrgPolicy{}
	found := false
	for rows.Next() {
		var category, level string
		if err := rows.Scan(&category, &level); err != nil {
			return nil, false, fmt.Errorf("scan org policy: %w", err)
		}
		found = true
		c, cErr := access.ParseCategory(category)
		l, lErr := access.ParseLevel(level)
		if cErr != nil || lErr != nil {
			s.logger.Warn("skipping malformed org policy row",
				zap.String("org", orgID), zap.String("category", category), zap.String("policy", level))
			continue
		}
		policy[c] = l
	}
	return policy, found, rows.Err()
}

// SetOrgPolicy upserts one category policy for an organization.
func (s *Store) SetOrgPolicy(ctx context.Context, orgID string, c access.Category, l access.Level) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO org_integration_policies (org_id, category, policy)
		VALUES ($1, $2, $3)
		ON CONFLICT (org_id, category) DO UPDATE SET policy = EXCLUDED.policy, updated_at = NOW()`,
		orgID, string(c), l.String())
	if err != nil {
		return fmt.Errorf("set org policy %s/%s: %w", orgID, c, err)
	}
	return nil
}

// OrgDisabledSkills returns slugs an org admin has turned off.
func (s *Store) OrgDisabledSkills(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT skill_slug FROM org_disabled_skills WHERE org_id = $1 ORDER BY skill_slug`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query disabled skills: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan disabled skill: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// SetSkillDisabled adds or removes a slug from an org's disabled list.
func (s *Store) SetSkillDisabled(ctx context.Context, orgID, slug, adminID string, disabled bool) error {
	var err error
	if disabled {
		_, err = s.db.Exec(ctx, `
			INSERT INTO org_disabled_skills (org_id, skill_slug, disabled_by)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, orgID, slug, adminID)
	} else {
		_, err = s.db.Exec(ctx,
			`DELETE FROM org_disabled_skills WHERE org_id = $1 AND skill_slug = $2`, orgID, slug)
	}
	if err != nil {
		return fmt.Errorf("set skill disabled %s/%s: %w", orgID, slug, err)
	}
	return nil
}

// OrgModelDefault returns the org-wide LLM provider/model, if configured.
func (s *Store) OrgModelDefault(ctx context.Context, orgID string) (profile.ModelChoice, bool, error) {
	return s.modelChoice(ctx, `SELECT llm_provider, llm_model FROM org_settings WHERE org_id = $1`, orgID)
}

// UserModelPreference returns the user's stored LLM choice, if any.
func (s *Store) UserModelPreference(ctx context.Context, userID string) (profile.ModelChoice, bool, error) {
	return s.modelChoice(ctx, `SELECT llm_provider, llm_model FROM user_settings WHERE user_id = $1`, userID)
}

// SetUserModelPreference upserts the user's LLM choice.
func (s *Store) SetUserModelPreference(ctx context.Context, userID string, m profile.ModelChoice) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_settings (user_id, llm_provider, llm_model) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			llm_provider = EXCLUDED.llm_provider, llm_model = EXCLUDED.llm_model, updated_at = NOW()`,
		userID, m.Provider, m.Model)
	if err != nil {
		return fmt.Errorf("set model preference %s: %w", userID, err)
	}
	return nil
}

func (s *Store) modelChoice(ctx context.Context, query, id string) (profile.ModelChoice, bool, error) {
	var m profile.ModelChoice
	err := s.db.QueryRow(ctx, query, id).Scan(&m.Provider, &m.Model)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.ModelChoice{}, false, nil
	}
	if err != nil {
		return profile.ModelChoice{}, false, fmt.Errorf("query model choice %s: %w", id, err)
	}
	return m, m.Model != "", nil
}
