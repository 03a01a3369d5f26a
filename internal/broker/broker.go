// Package broker composes access resolution, skill classification, profile
// building and rendering into the operations the API exposes. Every call
// builds its own access.Scope; nothing is cached across requests.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/notify"
	"github.com/nidhogg/skillgate/internal/profile"
	"github.com/nidhogg/skillgate/internal/render"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"go.uber.org/zap"
)

// Store is everything the broker reads and writes.
type Store interface {
	access.PolicyReader
	access.IntegrationReader
	profile.CredentialSource

	GetSkillBySlug(ctx context.Context, slug string) (*skill.Skill, error)
	ListSkills(ctx context.Context, userID, orgID string) ([]*skill.Skill, error)
	InsertSkill(ctx context.Context, sk *skill.Skill) error
	UpdateSkill(ctx context.Context, sk *skill.Skill) error
	InsertAutomation(ctx context.Context, a *schedule.Automation) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Notifier delivers admin notices.
type Notifier interface {
	Notify(ctx context.Context, n *notify.Notice) error
}

// Viewer is the caller of an operation. Authentication happens upstream.
type Viewer struct {
	UserID           string
	OrganizationID   string
	IsAdmin          bool
	HasPaymentIntent bool
}

// Service implements the skill and access operations.
type Service struct {
	store    Store
	resolver *access.Resolver
	builder  *profile.Builder
	renderer render.Renderer
	events   events.Publisher
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a Service. publisher and notifier may be nil.
func NewService(
	store Store,
	resolver *access.Resolver,
	renderer render.Renderer,
	publisher events.Publisher,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if renderer == nil {
		renderer = render.NewPlaceholderRenderer()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		builder:  profile.NewBuilder(resolver, store, logger),
		renderer: renderer,
		events:   publisher,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the time source used for automation schedules.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) newScope() *access.Scope {
	return access.NewScope(s.store, s.store)
}

// Health checks the store. A failure is reported as UNAVAILABLE.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return apperr.NewUnavailable(err)
	}
	return nil
}

// ResolveEffectiveAccess returns the user's per-category access.
func (s *Service) ResolveEffectiveAccess(ctx context.Context, userID, orgID string) (access.EffectiveAccess, error) {
	if userID == "" {
		return nil, apperr.NewInvalidRequest("user id is required")
	}
	eff, err := s.resolver.Resolve(ctx, s.newScope(), userID, orgID)
	if err != nil {
		return nil, storeError(err)
	}
	return eff, nil
}

func (s *Service) publish(ctx context.Context, ev *events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, n *notify.Notice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("admin notice failed",
			zap.String("kind", string(n.Kind)), zap.Error(err))
	}
}

// storeError maps a persistence failure to a retryable API error.
func storeError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.NewUnavailable(err)
}
