package access

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultIndividualBlocked lists categories users outside an organization
// can never use, whatever they have connected.
var DefaultIndividualBlocked = []Category{CategoryATS}

// Resolver computes effective access from org policy and integrations.
// It holds no per-request state; all caching lives in the Scope.
type Resolver struct {
	blocked map[Category]bool
	logger  *zap.Logger
}

// NewResolver creates a resolver. blocked is the individual block-list;
// nil means DefaultIndividualBlocked.
func NewResolver(blocked []Category, logger *zap.Logger) *Resolver {
	if blocked == nil {
		blocked = DefaultIndividualBlocked
	}
	set := make(map[Category]bool, len(blocked))
	for _, c := range blocked {
		set[c] = true
	}
	return &Resolver{blocked: set, logger: logger}
}

// Resolve returns the user's effective access for every category.
// orgID is empty for individual users.
func (r *Resolver) Resolve(ctx context.Context, scope *Scope, userID, orgID string) (EffectiveAccess, error) {
	ceiling, err := r.ceilings(ctx, scope, orgID)
	if err != nil {
		return nil, err
	}

	recs, err := scope.Integrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	conn := r.ConnectionLevels(recs)

	out := make(EffectiveAccess, len(Categories))
	for _, c := range Categories {
		out[c] = Merge(ceiling.Ceiling(c), conn[c])
	}
	return out, nil
}

// ceilings returns the policy that applies to the caller: the stored org
// policy for members, the individual block-list otherwise.
func (r *Resolver) ceilings(ctx context.Context, scope *Scope, orgID string) (OrgPolicy, error) {
	if orgID == "" {
		p := make(OrgPolicy, len(r.blocked))
		for c := range r.blocked {
			p[c] = LevelDisabled
		}
		return p, nil
	}

	p, found, err := scope.Policy(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !found {
		r.logger.Warn("no integration policy for organization, allowing all categories",
			zap.String("org", orgID))
		return OrgPolicy{}, nil
	}
	return p, nil
}

// ConnectionLevels takes the highest declared level per category among
// connected records. Records that fail to parse are skipped.
func (r *Resolver) ConnectionLevels(recs []IntegrationRecord) map[Category]Level {
	out := make(map[Category]Level)
	for _, rec := range recs {
		if rec.Status != StatusConnected {
			continue
		}
		c, err := ParseCategory(rec.Category)
		if err != nil {
			r.logger.Debug("skipping integration with unknown category",
				zap.String("id", rec.ID), zap.String("provider", rec.Provider), zap.Error(err))
			continue
		}
		l, err := rec.Level()
		if err != nil {
			r.logger.Debug("skipping integration with bad access level",
				zap.String("id", rec.ID), zap.String("provider", rec.Provider), zap.Error(err))
			continue
		}
		out[c] = Max(out[c], l)
	}
	return out
}
