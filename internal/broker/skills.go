package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/notify"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/slug"
	"go.uber.org/zap"
)

// SkillView is a skill with its status for the viewer.
type SkillView struct {
	*skill.Skill
	skill.Status
}

// SkillInput is the writable part of a skill.
type SkillInput struct {
	Name                 string           `json:"name" validate:"required,max=120"`
	Description          string           `json:"description" validate:"max=2000"`
	Category             string           `json:"category" validate:"max=64"`
	Instructions         string           `json:"instructions" validate:"required"`
	RequiredIntegrations json.RawMessage  `json:"required_integrations,omitempty"`
	Visibility           skill.Visibility `json:"visibility,omitempty" validate:"omitempty,oneof=private organization"`
	Automation           *AutomationInput `json:"automation,omitempty"`
}

// CreateResult reports a created skill and, when requested, its automation.
// The skill is kept even if the automation could not be created.
type CreateResult struct {
	Skill           SkillView            `json:"skill"`
	Automation      *schedule.Automation `json:"automation,omitempty"`
	AutomationError string               `json:"automation_error,omitempty"`
}

// ListSkills returns the skills visible to the viewer, classified against
// one access resolution. Disabled skills are only listed for admins.
func (s *Service) ListSkills(ctx context.Context, v Viewer) ([]SkillView, error) {
	scope := s.newScope()
	eff, disabled, err := s.accessFor(ctx, scope, v)
	if err != nil {
		return nil, err
	}

	skills, err := s.store.ListSkills(ctx, v.UserID, v.OrganizationID)
	if err != nil {
		return nil, storeError(err)
	}

	views := make([]SkillView, 0, len(skills))
	for _, sk := range skills {
		st := classifyFor(sk, eff, disabled, v)
		if !skill.Visible(st, v.IsAdmin) {
			continue
		}
		views = append(views, SkillView{Skill: sk, Status: st})
	}
	return views, nil
}

// GetSkill returns one skill with its status.
func (s *Service) GetSkill(ctx context.Context, v Viewer, slugValue string) (*SkillView, error) {
	sk, err := s.loadSkill(ctx, v, slugValue)
	if err != nil {
		return nil, err
	}
	scope := s.newScope()
	eff, disabled, err := s.accessFor(ctx, scope, v)
	if err != nil {
		return nil, err
	}
	return &SkillView{Skill: sk, Status: classifyFor(sk, eff, disabled, v)}, nil
}

// CreateSkill stores a user skill under a fresh unique slug. Organization
// visibility requested by a non-admin is held as pending and admins are
// notified. An attached automation is best-effort.
func (s *Service) CreateSkill(ctx context.Context, v Viewer, in SkillInput) (*CreateResult, error) {
	if v.UserID == "" {
		return nil, apperr.NewInvalidRequest("user id is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.NewInvalidRequest("name is required")
	}
	reqs, err := parseRequirements(in.RequiredIntegrations)
	if err != nil {
		return nil, err
	}

	sk := &skill.Skill{
		Name:           name,
		Description:    in.Description,
		Category:       in.Category,
		Requirements:   reqs,
		Instructions:   in.Instructions,
		IsEnabled:      true,
		OwnerID:        v.UserID,
		OrganizationID: v.OrganizationID,
		Source:         "user",
	}
	pending, err := applyVisibility(sk, v, in.Visibility)
	if err != nil {
		return nil, err
	}

	base := slug.Slugify(name)
	_, err = slug.Create(ctx, func(ctx context.Context, candidate string) error {
		sk.Slug = candidate
		return s.store.InsertSkill(ctx, sk)
	}, base)
	if err != nil {
		if errors.Is(err, slug.ErrExhausted) {
			return nil, apperr.NewSlugCollision(base, err)
		}
		return nil, storeError(err)
	}

	s.logger.Info("skill created",
		zap.String("slug", sk.Slug),
		zap.String("owner", v.UserID),
		zap.String("visibility", string(sk.Visibility)))
	s.publish(ctx, events.New(events.SkillCreated, v.UserID, v.OrganizationID, sk.Slug))
	if pending {
		s.requestVisibility(ctx, v, sk)
	}

	result := &CreateResult{Skill: s.view(ctx, v, sk)}
	if in.Automation != nil {
		a, err := s.createAutomation(ctx, v, sk, *in.Automation)
		if err != nil {
			s.logger.Warn("automation not created; skill kept",
				zap.String("slug", sk.Slug), zap.Error(err))
			result.AutomationError = apperr.From(err).Message
			s.automationFailed(ctx, v, sk, result.AutomationError)
		} else {
			result.Automation = a
		}
	}
	return result, nil
}

// UpdateSkill replaces a skill owned by the viewer. A name change that
// changes the slug base allocates a new unique slug, except for a skill the
// org has disabled: the disabled list is keyed by slug, so a non-admin edit
// keeps the slug it was disabled under.
func (s *Service) UpdateSkill(ctx context.Context, v Viewer, slugValue string, in SkillInput) (*SkillView, error) {
	sk, err := s.loadSkill(ctx, v, slugValue)
	if err != nil {
		return nil, err
	}
	if sk.IsGlobal || sk.OwnerID != v.UserID {
		return nil, apperr.NewForbidden("only the owner can edit this skill")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.NewInvalidRequest("name is required")
	}
	pinned := false
	if !v.IsAdmin {
		disabled, err := s.newScope().DisabledSkills(ctx, v.OrganizationID)
		if err != nil {
			return nil, storeError(err)
		}
		pinned = disabled[sk.Slug]
	}
	if len(in.RequiredIntegrations) > 0 {
		reqs, err := parseRequirements(in.RequiredIntegrations)
		if err != nil {
			return nil, err
		}
		sk.Requirements = reqs
	}

	oldBase := slug.Slugify(sk.Name)
	sk.Name = name
	sk.Description = in.Description
	sk.Category = in.Category
	sk.Instructions = in.Instructions

	pending := false
	if in.Visibility != "" {
		if pending, err = applyVisibility(sk, v, in.Visibility); err != nil {
			return nil, err
		}
	}

	base := slug.Slugify(name)
	if base != oldBase && !pinned {
		_, err = slug.Create(ctx, func(ctx context.Context, candidate string) error {
			sk.Slug = candidate
			return s.store.UpdateSkill(ctx, sk)
		}, base)
		if errors.Is(err, slug.ErrExhausted) {
			return nil, apperr.NewSlugCollision(base, err)
		}
	} else {
		err = s.store.UpdateSkill(ctx, sk)
	}
	if err != nil {
		if errors.Is(err, skill.ErrNotFound) {
			return nil, apperr.NewNotFound("skill", slugValue)
		}
		return nil, storeError(err)
	}

	s.publish(ctx, events.New(events.SkillUpdated, v.UserID, v.OrganizationID, sk.Slug).
		With("previous_slug", slugValue))
	if pending {
		s.requestVisibility(ctx, v, sk)
	}

	view := s.view(ctx, v, sk)
	return &view, nil
}

// accessFor resolves the viewer's access and the org's disabled skills
// through one scope.
func (s *Service) accessFor(ctx context.Context, scope *access.Scope, v Viewer) (access.EffectiveAccess, map[string]bool, error) {
	eff, err := s.resolver.Resolve(ctx, scope, v.UserID, v.OrganizationID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	disabled, err := scope.DisabledSkills(ctx, v.OrganizationID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	return eff, disabled, nil
}

// classifyFor picks the classification that matches the viewer: org
// members get the disabled list and admin bypass, individuals neither.
func classifyFor(sk *skill.Skill, eff access.EffectiveAccess, disabled map[string]bool, v Viewer) skill.Status {
	if v.OrganizationID == "" {
		return skill.ClassifyIndividual(sk, eff)
	}
	return skill.Classify(sk, eff, disabled, v.IsAdmin)
}

// view classifies sk for the response of a write. A failed resolution is
// not fatal here since the write already happened.
func (s *Service) view(ctx context.Context, v Viewer, sk *skill.Skill) SkillView {
	eff, disabled, err := s.accessFor(ctx, s.newScope(), v)
	if err != nil {
		s.logger.Warn("classify after write failed", zap.String("slug", sk.Slug), zap.Error(err))
		eff, disabled = access.EffectiveAccess{}, nil
	}
	return SkillView{Skill: sk, Status: classifyFor(sk, eff, disabled, v)}
}

// loadSkill fetches a skill the viewer is allowed to see. Skills outside
// the viewer's reach are reported as not found.
func (s *Service) loadSkill(ctx context.Context, v Viewer, slugValue string) (*skill.Skill, error) {
	sk, err := s.store.GetSkillBySlug(ctx, slugValue)
	if errors.Is(err, skill.ErrNotFound) {
		return nil, apperr.NewNotFound("skill", slugValue)
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !canSee(sk, v) {
		return nil, apperr.NewNotFound("skill", slugValue)
	}
	return sk, nil
}

func canSee(sk *skill.Skill, v Viewer) bool {
	switch {
	case sk.IsGlobal:
		return sk.IsEnabled
	case sk.OwnerID != "" && sk.OwnerID == v.UserID:
		return true
	case v.OrganizationID != "" && sk.OrganizationID == v.OrganizationID:
		return sk.Visibility == skill.VisibilityOrganization && sk.IsEnabled
	}
	return false
}

// applyVisibility sets the requested visibility, holding organization
// visibility as pending for non-admins. It reports whether a request for
// admin approval is needed.
func applyVisibility(sk *skill.Skill, v Viewer, want skill.Visibility) (bool, error) {
	switch want {
	case "", skill.VisibilityPrivate:
		sk.Visibility = skill.VisibilityPrivate
		sk.PendingVisibility = ""
		return false, nil
	case skill.VisibilityOrganization:
		if v.OrganizationID == "" {
			return false, apperr.NewInvalidRequest("organization visibility requires an organization")
		}
		if v.IsAdmin {
			sk.Visibility = skill.VisibilityOrganization
			sk.PendingVisibility = ""
			return false, nil
		}
		if sk.Visibility == "" {
			sk.Visibility = skill.VisibilityPrivate
		}
		if sk.Visibility == skill.VisibilityOrganization {
			return false, nil
		}
		sk.PendingVisibility = skill.VisibilityOrganization
		return true, nil
	default:
		return false, apperr.NewInvalidRequest(fmt.Sprintf("unknown visibility %q", want))
	}
}

func parseRequirements(raw json.RawMessage) (access.Requirements, error) {
	reqs, err := access.ParseRequirements(raw)
	if err != nil {
		return nil, apperr.NewInvalidRequest("required_integrations: " + err.Error())
	}
	return reqs, nil
}

func (s *Service) requestVisibility(ctx context.Context, v Viewer, sk *skill.Skill) {
	s.notify(ctx, &notify.Notice{
		Kind:      notify.KindVisibilityRequest,
		Title:     fmt.Sprintf("%s requests organization visibility", sk.Name),
		Body:      fmt.Sprintf("User %s asked to share skill %q with the organization.", v.UserID, sk.Slug),
		OrgID:     v.OrganizationID,
		UserID:    v.UserID,
		SkillSlug: sk.Slug,
	})
}

func (s *Service) automationFailed(ctx context.Context, v Viewer, sk *skill.Skill, reason string) {
	s.publish(ctx, events.New(events.AutomationFailed, v.UserID, v.OrganizationID, sk.Slug).
		With("error", reason))
	s.notify(ctx, &notify.Notice{
		Kind:      notify.KindAutomationFailed,
		Title:     fmt.Sprintf("Automation for %s was not created", sk.Name),
		Body:      reason,
		OrgID:     v.OrganizationID,
		UserID:    v.UserID,
		SkillSlug: sk.Slug,
	})
}
