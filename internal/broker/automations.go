package broker

import (
	"context"
	"time"

	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"go.uber.org/zap"
)

// AutomationInput schedules a skill.
type AutomationInput struct {
	Name     string `json:"name" validate:"max=120"`
	Cron     string `json:"cron" validate:"required"`
	Timezone string `json:"timezone"`
}

// CronCheck is the result of validating a schedule.
type CronCheck struct {
	Valid   bool       `json:"valid"`
	Error   string     `json:"error,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// CreateAutomation attaches a schedule to a skill the viewer can run.
func (s *Service) CreateAutomation(ctx context.Context, v Viewer, slugValue string, in AutomationInput) (*schedule.Automation, error) {
	if v.UserID == "" {
		return nil, apperr.NewInvalidRequest("user id is required")
	}
	sk, err := s.loadSkill(ctx, v, slugValue)
	if err != nil {
		return nil, err
	}
	scope := s.newScope()
	eff, disabled, err := s.accessFor(ctx, scope, v)
	if err != nil {
		return nil, err
	}
	if st := skill.ClassifyForExecution(sk, eff, disabled); st.Status == skill.StateDisabled {
		return nil, apperr.NewForbidden(st.Guidance)
	}
	return s.createAutomation(ctx, v, sk, in)
}

func (s *Service) createAutomation(ctx context.Context, v Viewer, sk *skill.Skill, in AutomationInput) (*schedule.Automation, error) {
	if check := schedule.ValidateCron(in.Cron); !check.Valid {
		return nil, apperr.NewInvalidCron(check.Error)
	}
	if _, err := schedule.LoadLocation(in.Timezone); err != nil {
		return nil, apperr.NewInvalidRequest(err.Error())
	}

	a, err := schedule.NewAutomation(sk.ID, v.UserID, in.Name, in.Cron, in.Timezone, s.now())
	if err != nil {
		return nil, apperr.NewInvalidCron(err.Error())
	}
	if err := s.store.InsertAutomation(ctx, a); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("automation created",
		zap.String("slug", sk.Slug),
		zap.String("cron", a.Cron),
		zap.String("timezone", a.Timezone),
		zap.Time("next_run", a.NextRunAt))
	s.publish(ctx, events.New(events.AutomationCreated, v.UserID, v.OrganizationID, sk.Slug).
		With("automation_id", a.ID).
		With("next_run", a.NextRunAt.Format(time.RFC3339)))
	return a, nil
}

// ValidateCron checks an expression and, when valid, computes the next run
// after now in tz.
func (s *Service) ValidateCron(expr, tz string) CronCheck {
	check := schedule.ValidateCron(expr)
	if !check.Valid {
		return CronCheck{Valid: false, Error: check.Error}
	}
	next, err := schedule.NextRun(expr, tz, s.now())
	if err != nil {
		return CronCheck{Valid: false, Error: err.Error()}
	}
	return CronCheck{Valid: true, NextRun: &next}
}

// NextRun computes the next activation after the given instant.
func (s *Service) NextRun(expr, tz string, after time.Time) (time.Time, error) {
	next, err := schedule.NextRun(expr, tz, after)
	if err != nil {
		return time.Time{}, apperr.NewInvalidCron(err.Error())
	}
	return next, nil
}
