package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resolve(t *testing.T, fs *fakeStore, userID, orgID string) EffectiveAccess {
	t.Helper()
	r := NewResolver(nil, zap.NewNop())
	got, err := r.Resolve(context.Background(), NewScope(fs, fs), userID, orgID)
	require.NoError(t, err)
	return got
}

func TestResolveIndividualWithoutIntegrations(t *testing.T) {
	got := resolve(t, newFakeStore(), "u1", "")

	for _, c := range Categories {
		if c == CategoryATS {
			assert.Equal(t, LevelDisabled, got[c], "ats is blocked for individuals")
			continue
		}
		assert.Equal(t, LevelNone, got[c], c)
	}
}

func TestResolveIndividualBlockedCategoryIgnoresConnection(t *testing.T) {
	fs := newFakeStore()
	fs.connect("u1", "greenhouse", "ats", "read-write")
	fs.connect("u1", "gmail", "email", "read-only")

	got := resolve(t, fs, "u1", "")
	assert.Equal(t, LevelDisabled, got[CategoryATS])
	assert.Equal(t, LevelReadOnly, got[CategoryEmail])
}

func TestResolveOrgDisabledWinsOverConnection(t *testing.T) {
	fs := newFakeStore()
	fs.policies["org1"] = OrgPolicy{CategoryATS: LevelDisabled}
	fs.connect("u1", "greenhouse", "ats", "read-write")

	got := resolve(t, fs, "u1", "org1")
	assert.Equal(t, LevelDisabled, got[CategoryATS])
}

func TestResolveOrgCeilingCapsConnection(t *testing.T) {
	fs := newFakeStore()
	fs.policies["org1"] = OrgPolicy{CategoryEmail: LevelReadOnly}
	fs.connect("u1", "gmail", "email", "read-write")
	fs.connect("u1", "google-calendar", "calendar", "read-only")

	got := resolve(t, fs, "u1", "org1")
	assert.Equal(t, LevelReadOnly, got[CategoryEmail])
	assert.Equal(t, LevelReadOnly, got[CategoryCalendar], "missing policy key is unrestricted")
	assert.Equal(t, LevelNone, got[CategoryATS])
}

func TestResolveMissingPolicyFailsOpen(t *testing.T) {
	fs := newFakeStore()
	fs.connect("u1", "greenhouse", "ats", "read-write")

	got := resolve(t, fs, "u1", "org-without-policy")
	assert.Equal(t, LevelReadWrite, got[CategoryATS])
}

func TestResolveMostCapableProviderWins(t *testing.T) {
	fs := newFakeStore()
	fs.policies["org1"] = OrgPolicy{}
	fs.connect("u1", "lever", "ats", "read-only")
	fs.connect("u1", "greenhouse", "ats", "read-write")
	fs.connect("u1", "ashby", "ats", "read-only")

	got := resolve(t, fs, "u1", "org1")
	assert.Equal(t, LevelReadWrite, got[CategoryATS])
}

func TestResolveSkipsNonConnectedAndMalformed(t *testing.T) {
	fs := newFakeStore()
	fs.integrations["u1"] = []IntegrationRecord{
		{ID: "a", Provider: "gmail", Category: "email", Status: StatusPending, AccessLevel: "read-write"},
		{ID: "b", Provider: "outlook", Category: "email", Status: StatusError, AccessLevel: "read-write"},
		{ID: "c", Provider: "weird", Category: "fax", Status: StatusConnected},
		{ID: "d", Provider: "gcal", Category: "calendar", Status: StatusConnected, AccessLevel: "sideways"},
		{ID: "e", Provider: "google-sheets", Category: "sheets", Status: StatusConnected},
	}

	got := resolve(t, fs, "u1", "")
	assert.Equal(t, LevelNone, got[CategoryEmail])
	assert.Equal(t, LevelNone, got[CategoryCalendar])
	assert.Equal(t, LevelReadWrite, got[CategoryDatabase], "blank level defaults to read-write, sheets maps to database")
}

func TestResolveStoreFailureIsTransient(t *testing.T) {
	fs := newFakeStore()
	fs.failPolicy = true
	r := NewResolver(nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), NewScope(fs, fs), "u1", "org1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestScopeReadsPolicyOnce(t *testing.T) {
	fs := newFakeStore()
	fs.policies["org1"] = OrgPolicy{CategoryEmail: LevelReadOnly}
	r := NewResolver(nil, zap.NewNop())
	scope := NewScope(fs, fs)

	for i := 0; i < 5; i++ {
		_, err := r.Resolve(context.Background(), scope, "u1", "org1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fs.policyReads)

	_, err := r.Resolve(context.Background(), NewScope(fs, fs), "u1", "org1")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.policyReads, "a fresh scope reads again")
}

func TestScopeDisabledSkills(t *testing.T) {
	fs := newFakeStore()
	fs.disabled["org1"] = []string{"resume-screener"}
	scope := NewScope(fs, fs)

	set, err := scope.DisabledSkills(context.Background(), "org1")
	require.NoError(t, err)
	assert.True(t, set["resume-screener"])

	set, err = scope.DisabledSkills(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, set)
}
