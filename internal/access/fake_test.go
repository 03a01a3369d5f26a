package access

import (
	"context"
	"errors"
)

type fakeStore struct {
	policies     map[string]OrgPolicy
	disabled     map[string][]string
	integrations map[string][]IntegrationRecord
	policyReads  int
	failPolicy   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		policies:     make(map[string]OrgPolicy),
		disabled:     make(map[string][]string),
		integrations: make(map[string][]IntegrationRecord),
	}
}

func (f *fakeStore) OrgPolicy(_ context.Context, orgID string) (OrgPolicy, bool, error) {
	f.policyReads++
	if f.failPolicy {
		return nil, false, errors.New("connection refused")
	}
	p, ok := f.policies[orgID]
	return p, ok, nil
}

func (f *fakeStore) OrgDisabledSkills(_ context.Context, orgID string) ([]string, error) {
	return f.disabled[orgID], nil
}

func (f *fakeStore) ListConnectedIntegrations(_ context.Context, userID string) ([]IntegrationRecord, error) {
	return f.integrations[userID], nil
}

func (f *fakeStore) connect(userID, provider, category, level string) {
	f.integrations[userID] = append(f.integrations[userID], IntegrationRecord{
		ID:          provider + "-" + userID,
		UserID:      userID,
		Provider:    provider,
		Category:    category,
		Status:      StatusConnected,
		AccessLevel: level,
	})
}
