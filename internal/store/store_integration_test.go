//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/profile"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/slug"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

var testStore *Store

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("skillgate_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	os.Setenv(EncryptKeyEnv, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	dsn, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		cleanup()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := st.Migrate(ctx, "../../migrations"); err != nil {
		st.Close()
		cleanup()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	testStore = st

	code := m.Run()
	st.Close()
	cleanup()
	os.Exit(code)
}

func TestMigrateIsIdempotent(t *testing.T) {
	require.NoError(t, testStore.Migrate(context.Background(), "../../migrations"))
}

func TestIntegrationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testStore.SaveIntegration(ctx, &IntegrationRow{
		UserID: "int-u1", Provider: "gmail", Category: "email",
		Status: access.StatusConnected, AccessLevel: "read-only", Token: "gmail-secret",
	}))
	require.NoError(t, testStore.SaveIntegration(ctx, &IntegrationRow{
		UserID: "int-u1", Provider: "greenhouse", Category: "ats",
		Status: access.StatusPending, Token: "gh-secret", BaseURL: "https://harvest.greenhouse.io",
	}))

	recs, err := testStore.ListConnectedIntegrations(ctx, "int-u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "gmail", recs[0].Provider)
	assert.Equal(t, "read-only", recs[0].AccessLevel)

	creds, err := testStore.ListCredentials(ctx, "int-u1")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "gmail-secret", creds[0].Token)
}

func TestOrgPolicyAndDisabledSkills(t *testing.T) {
	ctx := context.Background()

	_, found, err := testStore.OrgPolicy(ctx, "org-none")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, testStore.SetOrgPolicy(ctx, "org-a", access.CategoryATS, access.LevelDisabled))
	require.NoError(t, testStore.SetOrgPolicy(ctx, "org-a", access.CategoryEmail, access.LevelReadOnly))
	policy, found, err := testStore.OrgPolicy(ctx, "org-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, access.OrgPolicy{
		access.CategoryATS:   access.LevelDisabled,
		access.CategoryEmail: access.LevelReadOnly,
	}, policy)

	require.NoError(t, testStore.SetSkillDisabled(ctx, "org-a", "meeting-prep", "admin", true))
	require.NoError(t, testStore.SetSkillDisabled(ctx, "org-a", "inbox-triage", "admin", true))
	require.NoError(t, testStore.SetSkillDisabled(ctx, "org-a", "inbox-triage", "admin", false))
	slugs, err := testStore.OrgDisabledSkills(ctx, "org-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"meeting-prep"}, slugs)
}

func TestModelPreference(t *testing.T) {
	ctx := context.Background()
	_, ok, err := testStore.UserModelPreference(ctx, "pref-u1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := profile.ModelChoice{Provider: "openai", Model: "gpt-4o"}
	require.NoError(t, testStore.SetUserModelPreference(ctx, "pref-u1", want))
	got, ok, err := testStore.UserModelPreference(ctx, "pref-u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSkillsAndSlugCollisions(t *testing.T) {
	ctx := context.Background()
	insert := func(name string) (*skill.Skill, error) {
		sk := &skill.Skill{
			Name:         name,
			Instructions: "x",
			Requirements: access.Requirements{access.CategoryDatabase: access.LevelReadWrite},
			Visibility:   skill.VisibilityPrivate,
			IsEnabled:    true,
			OwnerID:      "sk-u1",
			Source:       "user",
		}
		_, err := slug.Create(ctx, func(ctx context.Context, candidate string) error {
			sk.Slug = candidate
			return testStore.InsertSkill(ctx, sk)
		}, slug.Slugify(name))
		return sk, err
	}

	a, err := insert("Pipeline Report")
	require.NoError(t, err)
	b, err := insert("Pipeline Report")
	require.NoError(t, err)
	assert.Equal(t, "pipeline-report", a.Slug)
	assert.Equal(t, "pipeline-report-2", b.Slug)

	exists, err := testStore.SkillSlugExists(ctx, "pipeline-report-2")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := testStore.GetSkillBySlug(ctx, "pipeline-report")
	require.NoError(t, err)
	assert.Equal(t, access.LevelReadWrite, got.Requirements[access.CategoryDatabase])

	_, err = testStore.GetSkillBySlug(ctx, "missing")
	assert.True(t, errors.Is(err, skill.ErrNotFound))

	b.Slug = "pipeline-report"
	err = testStore.UpdateSkill(ctx, b)
	assert.ErrorIs(t, err, slug.ErrTaken)

	list, err := testStore.ListSkills(ctx, "sk-u1", "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAutomations(t *testing.T) {
	ctx := context.Background()
	sk := &skill.Skill{Slug: "automated-skill", Name: "Automated", Instructions: "x", Visibility: skill.VisibilityPrivate, IsEnabled: true, OwnerID: "auto-u1", Source: "user"}
	require.NoError(t, testStore.InsertSkill(ctx, sk))

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	a, err := schedule.NewAutomation(sk.ID, "auto-u1", "", "0 9 * * *", "Europe/Berlin", now)
	require.NoError(t, err)
	require.NoError(t, testStore.InsertAutomation(ctx, a))

	list, err := testStore.ListAutomations(ctx, "auto-u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sk.ID, list[0].SkillID)
	assert.True(t, list[0].NextRunAt.Equal(time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)))
}

func TestUpsertGlobalSkillKeepsUserSkills(t *testing.T) {
	ctx := context.Background()
	user := &skill.Skill{Slug: "shadowed", Name: "Mine", Instructions: "mine", Visibility: skill.VisibilityPrivate, IsEnabled: true, OwnerID: "g-u1", Source: "user"}
	require.NoError(t, testStore.InsertSkill(ctx, user))

	require.NoError(t, testStore.UpsertGlobalSkill(ctx, &skill.Skill{Slug: "shadowed", Name: "Catalog", Instructions: "catalog", Source: "builtin"}))
	got, err := testStore.GetSkillBySlug(ctx, "shadowed")
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Instructions)

	require.NoError(t, testStore.UpsertGlobalSkill(ctx, &skill.Skill{Slug: "catalog-only", Name: "Catalog", Instructions: "v1", Source: "builtin"}))
	require.NoError(t, testStore.UpsertGlobalSkill(ctx, &skill.Skill{Slug: "catalog-only", Name: "Catalog", Instructions: "v2", Source: "builtin"}))
	got, err = testStore.GetSkillBySlug(ctx, "catalog-only")
	require.NoError(t, err)
	assert.True(t, got.IsGlobal)
	assert.Equal(t, "v2", got.Instructions)
}
