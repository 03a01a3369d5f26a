package broker

import (
	"context"
	"strconv"

	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/profile"
	"github.com/nidhogg/skillgate/internal/skill"
	"go.uber.org/zap"
)

// Rendered is ready-to-use instruction text. It contains live credentials
// and must never be stored or cached.
type Rendered struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Instructions string   `json:"instructions"`
	Unresolved   []string `json:"unresolved,omitempty"`
	LLMProvider  string   `json:"llm_provider,omitempty"`
	LLMModel     string   `json:"llm_model,omitempty"`
}

// RenderSkill fills a skill's placeholders from the viewer's live
// credentials. It refuses when the viewer lacks a payment intent, when the
// org has disabled the skill (admins included), or when any requirement is
// unmet.
func (s *Service) RenderSkill(ctx context.Context, v Viewer, slugValue string) (*Rendered, error) {
	if v.UserID == "" {
		return nil, apperr.NewInvalidRequest("user id is required")
	}
	if !v.HasPaymentIntent {
		return nil, apperr.NewPaymentRequired()
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

	p, err := s.builder.Build(ctx, scope, v.UserID, v.OrganizationID)
	if err != nil {
		return nil, storeError(err)
	}
	check := profile.CheckRequirements(sk.Requirements, p)
	if !check.Satisfied {
		missing := make([]string, len(check.Missing))
		for i, c := range check.Missing {
			missing[i] = string(c)
		}
		return nil, apperr.NewMissingCapability(sk.Slug, missing)
	}

	res := s.renderer.Render(sk.Instructions, p.Values())
	if len(res.Unresolved) > 0 {
		s.logger.Debug("unresolved placeholders",
			zap.String("slug", sk.Slug), zap.Strings("names", res.Unresolved))
	}

	out := &Rendered{
		Slug:         sk.Slug,
		Name:         sk.Name,
		Instructions: res.Text,
		Unresolved:   res.Unresolved,
	}
	if p.LLM != nil {
		out.LLMProvider = p.LLM.Provider
		out.LLMModel = p.LLM.Model
	}

	s.publish(ctx, events.New(events.SkillRendered, v.UserID, v.OrganizationID, sk.Slug).
		With("llm_provider", out.LLMProvider).
		With("unresolved", strconv.Itoa(len(res.Unresolved))))
	return out, nil
}
