package slug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My Cool Skill!!", "my-cool-skill"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"a---b___c", "a-b-c"},
		{"Résumé Screener", "r-sum-screener"},
		{"ATS 2.0 Sync", "ats-2-0-sync"},
		{"!!!", Fallback},
		{"", Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

// memSlugs is a set guarded by a mutex, mimicking a unique index.
type memSlugs struct {
	mu  sync.Mutex
	set map[string]bool
}

func (m *memSlugs) exists(_ context.Context, s string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[s], nil
}

func (m *memSlugs) insert(_ context.Context, s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set[s] {
		return fmt.Errorf("insert skill: %w", ErrTaken)
	}
	m.set[s] = true
	return nil
}

func TestEnsureUniqueWithInterveningInsert(t *testing.T) {
	ctx := context.Background()
	m := &memSlugs{set: map[string]bool{}}

	first, err := EnsureUnique(ctx, m.exists, "my-cool-skill")
	require.NoError(t, err)
	assert.Equal(t, "my-cool-skill", first)
	require.NoError(t, m.insert(ctx, first))

	second, err := EnsureUnique(ctx, m.exists, "my-cool-skill")
	require.NoError(t, err)
	assert.Equal(t, "my-cool-skill-2", second)
}

func TestCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	m := &memSlugs{set: map[string]bool{}}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Create(ctx, m.insert, "report")
			if err == nil {
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for s := range results {
		assert.False(t, seen[s], "duplicate slug %s", s)
		seen[s] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen["report"])
	assert.True(t, seen[fmt.Sprintf("report-%d", workers)])
}

func TestCreatePropagatesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Create(context.Background(), func(context.Context, string) error { return boom }, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCreateExhausted(t *testing.T) {
	_, err := Create(context.Background(), func(context.Context, string) error { return ErrTaken }, "x")
	assert.ErrorIs(t, err, ErrExhausted)
}
