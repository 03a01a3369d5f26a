package access

import (
	"context"
	"errors"
)

// ErrStoreUnavailable marks failures to reach the persistence layer.
// Callers should treat it as transient and retry.
var ErrStoreUnavailable = errors.New("access store unavailable")

// IntegrationStatus is the connection state of a third-party account.
type IntegrationStatus string

const (
	StatusConnected    IntegrationStatus = "connected"
	StatusPending      IntegrationStatus = "pending"
	StatusError        IntegrationStatus = "error"
	StatusDisconnected IntegrationStatus = "disconnected"
)

// IntegrationRecord is one connected third-party account as stored.
// Category and AccessLevel are kept as raw strings so a bad row can be
// skipped during resolution instead of failing the whole read.
type IntegrationRecord struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Provider    string            `json:"provider"`
	Category    string            `json:"category"`
	Status      IntegrationStatus `json:"status"`
	AccessLevel string            `json:"access_level"`
}

// Level returns the record's chosen level; blank means read-write.
func (r IntegrationRecord) Level() (Level, error) {
	if r.AccessLevel == "" {
		return LevelReadWrite, nil
	}
	l, err := ParseLevel(r.AccessLevel)
	if err != nil {
		return LevelNone, err
	}
	if l == LevelDisabled || l == LevelNone {
		return LevelNone, nil
	}
	return l, nil
}

// OrgPolicy is an organization's per-category ceiling.
type OrgPolicy map[Category]Level

// Ceiling returns the policy for c. Categories missing from the policy are
// unrestricted.
func (p OrgPolicy) Ceiling(c Category) Level {
	if l, ok := p[c]; ok {
		return l
	}
	return LevelReadWrite
}

// EffectiveAccess is the resolved per-category level for one user.
type EffectiveAccess map[Category]Level

// Get returns the level for c, defaulting to none.
func (e EffectiveAccess) Get(c Category) Level {
	if l, ok := e[c]; ok {
		return l
	}
	return LevelNone
}

// PolicyReader reads organization policy. found is false when the
// organization has no policy row at all.
type PolicyReader interface {
	OrgPolicy(ctx context.Context, orgID string) (policy OrgPolicy, found bool, err error)
	OrgDisabledSkills(ctx context.Context, orgID string) ([]string, error)
}

// IntegrationReader lists a user's integration records.
type IntegrationReader interface {
	ListConnectedIntegrations(ctx context.Context, userID string) ([]IntegrationRecord, error)
}
