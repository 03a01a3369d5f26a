package access

import (
	"context"
	"fmt"
	"sync"
)

type policyEntry struct {
	policy OrgPolicy
	found  bool
}

// Scope memoizes store reads for the lifetime of one request so that
// listing many skills costs one policy read, not one per skill.
// Create a new Scope per request; never share one between requests.
type Scope struct {
	policies     PolicyReader
	integrations IntegrationReader

	mu               sync.Mutex
	policyCache      map[string]policyEntry
	disabled         map[string][]string
	integrationCache map[string][]IntegrationRecord
}

// NewScope returns an empty request-scoped cache over the given readers.
func NewScope(policies PolicyReader, integrations IntegrationReader) *Scope {
	return &Scope{
		policies:         policies,
		integrations:     integrations,
		policyCache:      make(map[string]policyEntry),
		disabled:         make(map[string][]string),
		integrationCache: make(map[string][]IntegrationRecord),
	}
}

// Policy returns the org policy, reading it at most once per scope.
func (s *Scope) Policy(ctx context.Context, orgID string) (OrgPolicy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.policyCache[orgID]; ok {
		return e.policy, e.found, nil
	}
	p, found, err := s.policies.OrgPolicy(ctx, orgID)
	if err != nil {
		return nil, false, fmt.Errorf("read org policy %s: %w", orgID, err)
	}
	s.policyCache[orgID] = policyEntry{policy: p, found: found}
	return p, found, nil
}

// DisabledSkills returns the admin-disabled slugs for an org as a set.
// Users without an organization have none.
func (s *Scope) DisabledSkills(ctx context.Context, orgID string) (map[string]bool, error) {
	set := make(map[string]bool)
	if orgID == "" {
		return set, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	slugs, ok := s.disabled[orgID]
	if !ok {
		var err error
		slugs, err = s.policies.OrgDisabledSkills(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("read disabled skills %s: %w", orgID, err)
		}
		s.disabled[orgID] = slugs
	}
	for _, slug := range slugs {
		set[slug] = true
	}
	return set, nil
}

// Integrations returns the user's integration records, read once per scope.
func (s *Scope) Integrations(ctx context.Context, userID string) ([]IntegrationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recs, ok := s.integrationCache[userID]; ok {
		return recs, nil
	}
	recs, err := s.integrations.ListConnectedIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations %s: %w", userID, err)
	}
	s.integrationCache[userID] = recs
	return recs, nil
}
