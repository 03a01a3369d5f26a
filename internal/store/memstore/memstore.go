// Package memstore is an in-memory implementation of the broker's store
// contracts. It backs local development without Postgres and the tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/profile"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/slug"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	creds       map[string][]profile.StoredCredential // userID -> credentials
	policies    map[string]access.OrgPolicy
	disabled    map[string][]string
	orgModels   map[string]profile.ModelChoice
	userModels  map[string]profile.ModelChoice
	skills      map[string]*skill.Skill // slug -> skill
	automations []*schedule.Automation

	// Err, when set, is returned from every read to simulate an outage.
	Err error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		creds:      make(map[string][]profile.StoredCredential),
		policies:   make(map[string]access.OrgPolicy),
		disabled:   make(map[string][]string),
		orgModels:  make(map[string]profile.ModelChoice),
		userModels: make(map[string]profile.ModelChoice),
		skills:     make(map[string]*skill.Skill),
	}
}

// Connect records a connected integration for a user.
func (s *Store) Connect(userID, provider string, c access.Category, l access.Level, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID] = append(s.creds[userID], profile.StoredCredential{
		IntegrationRecord: access.IntegrationRecord{
			ID:          uuid.New().String(),
			UserID:      userID,
			Provider:    provider,
			Category:    string(c),
			Status:      access.StatusConnected,
			AccessLevel: l.String(),
		},
		Token: token,
	})
}

// SetPolicy sets an org category policy.
func (s *Store) SetPolicy(orgID string, c access.Category, l access.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policies[orgID] == nil {
		s.policies[orgID] = access.OrgPolicy{}
	}
	s.policies[orgID][c] = l
}

// DisableSkill adds a slug to an org's disabled list.
func (s *Store) DisableSkill(orgID, slugValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[orgID] = append(s.disabled[orgID], slugValue)
}

// SetOrgModel sets an org's default LLM.
func (s *Store) SetOrgModel(orgID string, m profile.ModelChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgModels[orgID] = m
}

// SetUserModel sets a user's LLM preference.
func (s *Store) SetUserModel(userID string, m profile.ModelChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userModels[userID] = m
}

// Ping fails while Err is set.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Err
}

func (s *Store) OrgPolicy(_ context.Context, orgID string) (access.OrgPolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, false, s.Err
	}
	p, ok := s.policies[orgID]
	if !ok {
		return nil, false, nil
	}
	out := make(access.OrgPolicy, len(p))
	for c, l := range p {
		out[c] = l
	}
	return out, true, nil
}

func (s *Store) OrgDisabledSkills(_ context.Context, orgID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.disabled[orgID]...), nil
}

func (s *Store) ListConnectedIntegrations(_ context.Context, userID string) ([]access.IntegrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []access.IntegrationRecord
	for _, c := range s.creds[userID] {
		if c.Status == access.StatusConnected {
			out = append(out, c.IntegrationRecord)
		}
	}
	return out, nil
}

func (s *Store) ListCredentials(_ context.Context, userID string) ([]profile.StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]profile.StoredCredential(nil), s.creds[userID]...), nil
}

func (s *Store) OrgModelDefault(_ context.Context, orgID string) (profile.ModelChoice, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.orgModels[orgID]
	return m, ok, nil
}

func (s *Store) UserModelPreference(_ context.Context, userID string) (profile.ModelChoice, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.userModels[userID]
	return m, ok, nil
}

func (s *Store) GetSkillBySlug(_ context.Context, slugValue string) (*skill.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	sk, ok := s.skills[slugValue]
	if !ok {
		return nil, skill.ErrNotFound
	}
	cp := *sk
	return &cp, nil
}

func (s *Store) SkillSlugExists(_ context.Context, slugValue string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.skills[slugValue]
	return ok, nil
}

func (s *Store) ListSkills(_ context.Context, userID, orgID string) ([]*skill.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*skill.Skill
	for _, sk := range s.skills {
		visible := (sk.IsGlobal && sk.IsEnabled) ||
			sk.OwnerID == userID ||
			(orgID != "" && sk.OrganizationID == orgID && sk.Visibility == skill.VisibilityOrganization && sk.IsEnabled)
		if visible {
			cp := *sk
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsGlobal != out[j].IsGlobal {
			return out[i].IsGlobal
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) InsertSkill(_ context.Context, sk *skill.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.skills[sk.Slug]; ok {
		return fmt.Errorf("insert skill %s: %w", sk.Slug, slug.ErrTaken)
	}
	if sk.ID == "" {
		sk.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sk.CreatedAt, sk.UpdatedAt = now, now
	cp := *sk
	s.skills[sk.Slug] = &cp
	return nil
}

func (s *Store) UpdateSkill(_ context.Context, sk *skill.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	var oldSlug string
	for k, existing := range s.skills {
		if existing.ID == sk.ID {
			oldSlug = k
			break
		}
	}
	if oldSlug == "" {
		return skill.ErrNotFound
	}
	if sk.Slug != oldSlug {
		if _, taken := s.skills[sk.Slug]; taken {
			return fmt.Errorf("update skill %s: %w", sk.Slug, slug.ErrTaken)
		}
		delete(s.skills, oldSlug)
	}
	sk.UpdatedAt = time.Now().UTC()
	cp := *sk
	s.skills[sk.Slug] = &cp
	return nil
}

func (s *Store) UpsertGlobalSkill(_ context.Context, sk *skill.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sk
	if existing, ok := s.skills[sk.Slug]; ok {
		if !existing.IsGlobal {
			return nil
		}
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.ID = uuid.New().String()
		cp.CreatedAt = time.Now().UTC()
	}
	cp.IsGlobal, cp.IsEnabled = true, true
	cp.UpdatedAt = time.Now().UTC()
	s.skills[sk.Slug] = &cp
	return nil
}

func (s *Store) InsertAutomation(_ context.Context, a *schedule.Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	cp := *a
	s.automations = append(s.automations, &cp)
	return nil
}

func (s *Store) ListAutomations(_ context.Context, userID string) ([]*schedule.Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schedule.Automation
	for _, a := range s.automations {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
