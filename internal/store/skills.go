package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/slug"
)

const skillColumns = `
	id::text, slug, name, description, category, required_integrations, instructions,
	visibility, COALESCE(pending_visibility, ''), is_global, is_enabled,
	COALESCE(owner_id, ''), COALESCE(organization_id, ''), source, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSkill(row rowScanner) (*skill.Skill, error) {
	var sk skill.Skill
	var reqs []byte
	var visibility, pending string
	err := row.Scan(
		&sk.ID, &sk.Slug, &sk.Name, &sk.Description, &sk.Category, &reqs, &sk.Instructions,
		&visibility, &pending, &sk.IsGlobal, &sk.IsEnabled,
		&sk.OwnerID, &sk.OrganizationID, &sk.Source, &sk.CreatedAt, &sk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sk.Visibility = skill.Visibility(visibility)
	sk.PendingVisibility = skill.Visibility(pending)
	sk.Requirements = skill.DecodeRequirements(reqs, sk.Slug, s.logger)
	return &sk, nil
}

// GetSkillBySlug returns the skill or skill.ErrNotFound.
func (s *Store) GetSkillBySlug(ctx context.Context, slugValue string) (*skill.Skill, error) {
	row := s.db.QueryRow(ctx, `SELECT `+skillColumns+` FROM skills WHERE slug = $1`, slugValue)
	sk, err := s.scanSkill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, skill.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get skill %s: %w", slugValue, err)
	}
	return sk, nil
}

// SkillSlugExists reports whether any skill uses the slug.
func (s *Store) SkillSlugExists(ctx context.Context, slugValue string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM skills WHERE slug = $1)`, slugValue).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug %s: %w", slugValue, err)
	}
	return exists, nil
}

// ListSkills returns skills the user may see: enabled global skills, the
// user's own skills, and organization-visible skills of the user's org.
func (s *Store) ListSkills(ctx context.Context, userID, orgID string) ([]*skill.Skill, error) {
	rows, err := s.db.Query(ctx, `SELECT `+skillColumns+` FROM skills
		WHERE (is_global AND is_enabled)
		   OR owner_id = $1
		   OR ($2 <> '' AND organization_id = $2 AND visibility = 'organization' AND is_enabled)
		ORDER BY is_global DESC, name`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []*skill.Skill
	for rows.Next() {
		sk, err := s.scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// InsertSkill writes a new skill. A slug clash returns slug.ErrTaken so
// callers can retry with the next suffix.
func (s *Store) InsertSkill(ctx context.Context, sk *skill.Skill) error {
	if sk.ID == "" {
		sk.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sk.CreatedAt, sk.UpdatedAt = now, now

	reqs, err := sk.Requirements.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO skills (id, slug, name, description, category, required_integrations, instructions,
			visibility, pending_visibility, is_global, is_enabled, owner_id, organization_id, source,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14, $15, $15)`,
		sk.ID, sk.Slug, sk.Name, sk.Description, sk.Category, reqs, sk.Instructions,
		string(sk.Visibility), string(sk.PendingVisibility), sk.IsGlobal, sk.IsEnabled,
		sk.OwnerID, sk.OrganizationID, sk.Source, now,
	)
	if isUniqueViolation(err, "skills_slug_key") {
		return fmt.Errorf("insert skill %s: %w", sk.Slug, slug.ErrTaken)
	}
	if err != nil {
		return fmt.Errorf("insert skill %s: %w", sk.Slug, err)
	}
	return nil
}

// UpdateSkill overwrites a skill's mutable fields by ID.
func (s *Store) UpdateSkill(ctx context.Context, sk *skill.Skill) error {
	reqs, err := sk.Requirements.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	sk.UpdatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE skills SET slug = $2, name = $3, description = $4, category = $5,
			required_integrations = $6, instructions = $7, visibility = $8,
			pending_visibility = NULLIF($9, ''), is_enabled = $10, updated_at = $11
		WHERE id = $1`,
		sk.ID, sk.Slug, sk.Name, sk.Description, sk.Category, reqs, sk.Instructions,
		string(sk.Visibility), string(sk.PendingVisibility), sk.IsEnabled, sk.UpdatedAt,
	)
	if isUniqueViolation(err, "skills_slug_key") {
		return fmt.Errorf("update skill %s: %w", sk.Slug, slug.ErrTaken)
	}
	if err != nil {
		return fmt.Errorf("update skill %s: %w", sk.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return skill.ErrNotFound
	}
	return nil
}

// UpsertGlobalSkill seeds a catalog skill, keyed by slug.
func (s *Store) UpsertGlobalSkill(ctx context.Context, sk *skill.Skill) error {
	reqs, err := sk.Requirements.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO skills (id, slug, name, description, category, required_integrations, instructions,
			visibility, is_global, is_enabled, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, TRUE, $9)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			required_integrations = EXCLUDED.required_integrations,
			instructions = EXCLUDED.instructions,
			updated_at = NOW()
		WHERE skills.is_global`,
		uuid.New().String(), sk.Slug, sk.Name, sk.Description, sk.Category, reqs, sk.Instructions,
		string(skill.VisibilityOrganization), sk.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert global skill %s: %w", sk.Slug, err)
	}
	return nil
}
