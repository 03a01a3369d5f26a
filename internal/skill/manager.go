package skill

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager holds the global skill catalog shipped with the service:
// builtins plus anything loaded from the skills directory.
// All operations are thread-safe.
type Manager struct {
	mu     sync.RWMutex
	skills map[string]*Skill // slug -> skill
}

// NewManager creates an empty Manager ready for use.
func NewManager() *Manager {
	return &Manager{skills: make(map[string]*Skill)}
}

// Add registers a skill in the catalog, replacing any skill with the same slug.
func (m *Manager) Add(s *Skill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills[s.Slug] = s
}

// Get returns a skill by slug, or nil if not found.
func (m *Manager) Get(slug string) *Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skills[slug]
}

// All returns every skill in the catalog ordered by slug.
func (m *Manager) All() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Skill, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Len returns the number of skills in the catalog.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.skills)
}

// Upserter persists catalog skills keyed by slug.
type Upserter interface {
	UpsertGlobalSkill(ctx context.Context, s *Skill) error
}

// Seed writes every catalog skill to u and returns how many were written.
// It stops at the first failure.
func (m *Manager) Seed(ctx context.Context, u Upserter) (int, error) {
	n := 0
	for _, s := range m.All() {
		if err := u.UpsertGlobalSkill(ctx, s); err != nil {
			return n, fmt.Errorf("seed skill %s: %w", s.Slug, err)
		}
		n++
	}
	return n, nil
}
