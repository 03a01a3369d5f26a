package schedule

import (
	"fmt"
	"time"
)

// Automation runs a skill on a cron schedule for one user.
type Automation struct {
	ID        string    `json:"id"`
	SkillID   string    `json:"skill_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	Timezone  string    `json:"timezone"`
	Enabled   bool      `json:"enabled"`
	NextRunAt time.Time `json:"next_run_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAutomation validates the schedule and fills NextRunAt relative to now.
func NewAutomation(skillID, userID, name, expr, tz string, now time.Time) (*Automation, error) {
	next, err := NextRun(expr, tz, now)
	if err != nil {
		return nil, err
	}
	if tz == "" {
		tz = "UTC"
	}
	if name == "" {
		name = fmt.Sprintf("Scheduled run (%s)", expr)
	}
	return &Automation{
		SkillID:   skillID,
		UserID:    userID,
		Name:      name,
		Cron:      expr,
		Timezone:  tz,
		Enabled:   true,
		NextRunAt: next,
		CreatedAt: now.UTC(),
	}, nil
}

// Advance moves NextRunAt to the activation after the given instant.
func (a *Automation) Advance(after time.Time) error {
	next, err := NextRun(a.Cron, a.Timezone, after)
	if err != nil {
		return err
	}
	a.NextRunAt = next
	return nil
}
