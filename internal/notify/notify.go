// Package notify delivers admin notices to chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a notice.
type Kind string

const (
	KindVisibilityRequest Kind = "visibility_request"
	KindAutomationFailed  Kind = "automation_failed"
)

// Notice is a message for organization admins. It never carries tokens or
// rendered instructions.
type Notice struct {
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	OrgID     string `json:"org_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SkillSlug string `json:"skill_slug,omitempty"`
}

// Notifier delivers notices to one platform.
type Notifier interface {
	Platform() string
	Notify(ctx context.Context, n *Notice) error
}

// Record tracks a sent notice.
type Record struct {
	Notice  *Notice   `json:"notice"`
	SentAt  time.Time `json:"sent_at"`
	Targets []string  `json:"targets"`
}

// maxHistory bounds the delivery records a Fanout keeps in memory.
const maxHistory = 100

// Fanout sends each notice to every registered notifier.
type Fanout struct {
	mu        sync.Mutex
	notifiers []Notifier
	history   []Record
	logger    *zap.Logger
}

// NewFanout creates an empty Fanout.
func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{logger: logger}
}

// Add registers a notifier.
func (f *Fanout) Add(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, n)
}

// Platforms lists the registered platforms.
func (f *Fanout) Platforms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notifiers))
	for i, n := range f.notifiers {
		out[i] = n.Platform()
	}
	return out
}

// Notify delivers n everywhere. A failure on one platform does not stop the
// others; the joined error reports every failure.
func (f *Fanout) Notify(ctx context.Context, n *Notice) error {
	if n.Kind == "" {
		return fmt.Errorf("notice kind is required")
	}

	f.mu.Lock()
	notifiers := append([]Notifier(nil), f.notifiers...)
	f.mu.Unlock()

	f.logger.Info("sending notice",
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.String("org", n.OrgID),
		zap.Int("targets", len(notifiers)),
	)

	var errs []error
	var sent []string
	for _, nt := range notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			f.logger.Warn("notice delivery failed",
				zap.String("platform", nt.Platform()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", nt.Platform(), err))
			continue
		}
		sent = append(sent, nt.Platform())
	}

	f.mu.Lock()
	f.history = append(f.history, Record{Notice: n, SentAt: time.Now(), Targets: sent})
	if over := len(f.history) - maxHistory; over > 0 {
		f.history = append(f.history[:0:0], f.history[over:]...)
	}
	f.mu.Unlock()

	return errors.Join(errs...)
}

// History returns up to limit recent records, oldest first. Only the last
// maxHistory deliveries are kept.
func (f *Fanout) History(limit int) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.history) {
		limit = len(f.history)
	}
	start := len(f.history) - limit
	return append([]Record(nil), f.history[start:]...)
}
