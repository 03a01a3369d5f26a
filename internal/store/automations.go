package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nidhogg/skillgate/internal/schedule"
)

// InsertAutomation stores a scheduled run of a skill.
func (s *Store) InsertAutomation(ctx context.Context, a *schedule.Automation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO automations (id, skill_id, user_id, name, cron, timezone, enabled, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SkillID, a.UserID, a.Name, a.Cron, a.Timezone, a.Enabled, a.NextRunAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert automation for skill %s: %w", a.SkillID, err)
	}
	return nil
}

// ListAutomations returns a user's automations ordered by next run.
func (s *Store) ListAutomations(ctx context.Context, userID string) ([]*schedule.Automation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, skill_id::text, user_id, name, cron, timezone, enabled, next_run_at, created_at
		FROM automations WHERE user_id = $1 ORDER BY next_run_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []*schedule.Automation
	for rows.Next() {
		var a schedule.Automation
		if err := rows.Scan(&a.ID, &a.SkillID, &a.UserID, &a.Name, &a.Cron, &a.Timezone,
			&a.Enabled, &a.NextRunAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
