// Package slug derives URL-safe identifiers for skills and keeps them unique
// across the whole catalog.
package slug

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxAttempts bounds the suffix search in EnsureUnique and Create.
const MaxAttempts = 100

// Fallback is used when a name has no alphanumeric characters.
const Fallback = "skill"

var (
	// ErrTaken is returned by an InsertFunc when the slug already exists.
	ErrTaken = errors.New("slug already taken")
	// ErrExhausted means no free suffix was found within MaxAttempts.
	ErrExhausted = errors.New("no free slug")
)

// Slugify lowercases name and collapses every run of non-alphanumeric
// characters into a single hyphen, trimming hyphens at both ends.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// Candidate returns the n-th candidate for base: base itself for n < 2,
// otherwise base-n.
func Candidate(base string, n int) string {
	if n < 2 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// ExistsFunc reports whether a slug is already used anywhere in the catalog.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// EnsureUnique probes base, base-2, base-3, ... and returns the first free one.
// The answer can be stale by the time it is used; prefer Create for writes.
func EnsureUnique(ctx context.Context, exists ExistsFunc, base string) (string, error) {
	for n := 1; n <= MaxAttempts; n++ {
		candidate := Candidate(base, n)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %q after %d attempts", ErrExhausted, base, MaxAttempts)
}

// InsertFunc atomically inserts a record under slug, returning ErrTaken
// (possibly wrapped) when a unique constraint rejects it.
type InsertFunc func(ctx context.Context, slug string) error

// Create inserts under the first free candidate. Uniqueness is decided by
// the insert itself, so two concurrent creators of the same name both
// succeed with distinct slugs.
func Create(ctx context.Context, insert InsertFunc, base string) (string, error) {
	for n := 1; n <= MaxAttempts; n++ {
		candidate := Candidate(base, n)
		err := insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrTaken) {
			return "", fmt.Errorf("insert slug %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("%w for %q after %d attempts", ErrExhausted, base, MaxAttempts)
}
