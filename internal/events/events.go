// Package events publishes domain events to a Redis stream.
package events

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types.
const (
	SkillCreated      = "skill.created"
	SkillUpdated      = "skill.updated"
	SkillRendered     = "skill.rendered"
	AutomationCreated = "automation.created"
	AutomationFailed  = "automation.failed"
)

// Event is a single domain event. Attributes carry identifiers only,
// never credentials or rendered text.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	OrgID      string            `json:"org_id,omitempty"`
	SkillSlug  string            `json:"skill_slug,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Publisher emits events. Publishing is best-effort for callers; a failed
// publish must not fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New stamps an event with a ULID and the current time.
func New(typ, userID, orgID, skillSlug string) *Event {
	now := time.Now().UTC()
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	return &Event{
		ID:        id.String(),
		Type:      typ,
		UserID:    userID,
		OrgID:     orgID,
		SkillSlug: skillSlug,
		Timestamp: now,
	}
}

// With sets an attribute and returns the event for chaining.
func (e *Event) With(key, value string) *Event {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *Recorder) Publish(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
