package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/broker"
	"github.com/nidhogg/skillgate/internal/events"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/store/memstore"
	"go.uber.org/zap"
)

// newTestServer wires the handler against the in-memory store.
func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	logger := zap.NewNop()
	st := memstore.New()
	svc := broker.NewService(st, access.NewResolver(nil, logger), nil, events.Nop{}, nil, logger)
	svc.SetClock(func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) })

	ts := httptest.NewServer(NewHandler(svc, logger).Router())
	t.Cleanup(ts.Close)
	return ts, st
}

type identity struct {
	user, org     string
	admin, paying bool
}

func do(t *testing.T, ts *httptest.Server, method, path string, id *identity, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		req.Header.Set(HeaderUserID, id.user)
		req.Header.Set(HeaderOrgID, id.org)
		if id.admin {
			req.Header.Set(HeaderOrgAdmin, "true")
		}
		if id.paying {
			req.Header.Set(HeaderPaymentIntent, "true")
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&body)
		t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, want, body)
	}
}

type errorResponse struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

var member = &identity{user: "u1", org: "org1", paying: true}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/health", nil, nil)
	expectStatus(t, resp, http.StatusOK)

	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHealthCheckStoreDown(t *testing.T) {
	ts, st := newTestServer(t)
	st.Err = errors.New("connection refused")

	resp := do(t, ts, http.MethodGet, "/api/health", nil, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)

	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "unavailable" {
		t.Errorf("status = %q, want unavailable", body["status"])
	}
}

func TestMissingUserHeader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/skills", nil, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	var body errorResponse
	decodeJSON(t, resp, &body)
	if body.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Error.Code)
	}
}

func TestEffectiveAccess(t *testing.T) {
	ts, st := newTestServer(t)
	st.SetPolicy("org1", access.CategoryEmail, access.LevelDisabled)
	st.Connect("u1", "gmail", access.CategoryEmail, access.LevelReadWrite, "tok")
	st.Connect("u1", "gcal", access.CategoryCalendar, access.LevelReadOnly, "tok")

	resp := do(t, ts, http.MethodGet, "/api/access", member, nil)
	expectStatus(t, resp, http.StatusOK)

	var body struct {
		Access map[string]string `json:"access"`
	}
	decodeJSON(t, resp, &body)
	want := map[string]string{
		"ats":      "none",
		"email":    "disabled",
		"calendar": "read-only",
		"database": "none",
		"llm":      "none",
	}
	for c, l := range want {
		if body.Access[c] != l {
			t.Errorf("access[%s] = %q, want %q", c, body.Access[c], l)
		}
	}
}

func TestSkillLifecycle(t *testing.T) {
	ts, st := newTestServer(t)
	st.Connect("u1", "gmail", access.CategoryEmail, access.LevelReadWrite, "secret-token")

	resp := do(t, ts, http.MethodPost, "/api/skills", member, map[string]interface{}{
		"name":                  "Inbox Zero",
		"instructions":          "Token {{EMAIL_TOKEN}} for {{USER_ID}}",
		"required_integrations": map[string]string{"email": "read-only"},
		"automation":            map[string]string{"cron": "0 9 * * *", "timezone": "UTC"},
	})
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		Skill struct {
			Slug   string `json:"slug"`
			Status string `json:"status"`
		} `json:"skill"`
		Automation *struct {
			NextRunAt time.Time `json:"next_run_at"`
		} `json:"automation"`
	}
	decodeJSON(t, resp, &created)
	if created.Skill.Slug != "inbox-zero" {
		t.Fatalf("slug = %q, want inbox-zero", created.Skill.Slug)
	}
	if created.Skill.Status != "available" {
		t.Errorf("status = %q, want available", created.Skill.Status)
	}
	if created.Automation == nil || !created.Automation.NextRunAt.Equal(time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("automation = %+v, want next run 2025-06-03T09:00Z", created.Automation)
	}

	resp = do(t, ts, http.MethodGet, "/api/skills/inbox-zero", member, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, ts, http.MethodPost, "/api/skills/inbox-zero/render", member, nil)
	expectStatus(t, resp, http.StatusOK)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	var rendered broker.Rendered
	decodeJSON(t, resp, &rendered)
	if rendered.Instructions != "Token secret-token for u1" {
		t.Errorf("instructions = %q", rendered.Instructions)
	}

	resp = do(t, ts, http.MethodPut, "/api/skills/inbox-zero", member, map[string]interface{}{
		"name":         "Inbox Hero",
		"instructions": "v2",
	})
	expectStatus(t, resp, http.StatusOK)
	var updated skill.Skill
	decodeJSON(t, resp, &updated)
	if updated.Slug != "inbox-hero" {
		t.Errorf("slug after rename = %q, want inbox-hero", updated.Slug)
	}
	if len(updated.Requirements) != 1 {
		t.Errorf("requirements = %v, want the email requirement kept", updated.Requirements)
	}
}

func TestRenderErrors(t *testing.T) {
	ts, st := newTestServer(t)
	if err := st.UpsertGlobalSkill(context.Background(), &skill.Skill{
		Slug:         "meeting-prep",
		Name:         "Meeting Prep",
		Requirements: access.Requirements{access.CategoryCalendar: access.LevelReadOnly},
		Instructions: "{{CALENDAR_TOKEN}}",
	}); err != nil {
		t.Fatal(err)
	}

	noPay := &identity{user: "u1", org: "org1"}
	resp := do(t, ts, http.MethodPost, "/api/skills/meeting-prep/render", noPay, nil)
	expectStatus(t, resp, http.StatusPaymentRequired)
	resp.Body.Close()

	resp = do(t, ts, http.MethodPost, "/api/skills/meeting-prep/render", member, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	var body errorResponse
	decodeJSON(t, resp, &body)
	if body.Error.Code != "MISSING_CAPABILITY" {
		t.Fatalf("code = %q, want MISSING_CAPABILITY", body.Error.Code)
	}
	missing, _ := body.Error.Details["missing"].([]interface{})
	if len(missing) != 1 || missing[0] != "calendar" {
		t.Errorf("missing = %v, want [calendar]", body.Error.Details["missing"])
	}

	resp = do(t, ts, http.MethodPost, "/api/skills/unknown/render", member, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestDisabledSkillListing(t *testing.T) {
	ts, st := newTestServer(t)
	st.DisableSkill("org1", "meeting-prep")
	if err := st.UpsertGlobalSkill(context.Background(), &skill.Skill{Slug: "meeting-prep", Name: "Meeting Prep"}); err != nil {
		t.Fatal(err)
	}

	var list []map[string]interface{}
	resp := do(t, ts, http.MethodGet, "/api/skills", member, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("member sees %d skills, want 0", len(list))
	}

	admin := &identity{user: "boss", org: "org1", admin: true}
	resp = do(t, ts, http.MethodGet, "/api/skills", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &list)
	// Admins bypass the disabled list so they can still manage the skill.
	if len(list) != 1 || list[0]["status"] != "available" {
		t.Errorf("admin listing = %v, want the skill listed", list)
	}
}

func TestCreateSkillValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing name", map[string]string{"instructions": "x"}},
		{"missing instructions", map[string]string{"name": "x"}},
		{"bad visibility", map[string]string{"name": "x", "instructions": "x", "visibility": "public"}},
		{"automation without cron", map[string]interface{}{"name": "x", "instructions": "x", "automation": map[string]string{}}},
		{"bad requirement", map[string]interface{}{"name": "x", "instructions": "x", "required_integrations": map[string]string{"email": "admin"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, http.MethodPost, "/api/skills", member, tt.body)
			expectStatus(t, resp, http.StatusBadRequest)
			var body errorResponse
			decodeJSON(t, resp, &body)
			if body.Error.Code != "INVALID_REQUEST" {
				t.Errorf("code = %q, want INVALID_REQUEST", body.Error.Code)
			}
		})
	}
}

func TestCreateAutomationInvalidCron(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/skills", member, map[string]string{"name": "Nightly", "instructions": "x"})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = do(t, ts, http.MethodPost, "/api/skills/nightly/automations", member, map[string]string{"cron": "0 25 * * *"})
	expectStatus(t, resp, http.StatusBadRequest)
	var body errorResponse
	decodeJSON(t, resp, &body)
	if body.Error.Code != "INVALID_CRON" {
		t.Errorf("code = %q, want INVALID_CRON", body.Error.Code)
	}

	resp = do(t, ts, http.MethodPost, "/api/skills/nightly/automations", member, map[string]string{"cron": "0 2 * * *"})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
}

func TestValidateCronEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/cron/validate", nil, map[string]string{"expression": "0 9 * * 1", "timezone": "Europe/London"})
	expectStatus(t, resp, http.StatusOK)
	var ok broker.CronCheck
	decodeJSON(t, resp, &ok)
	if !ok.Valid || ok.NextRun == nil {
		t.Fatalf("got %+v, want valid with next run", ok)
	}
	// Monday 2025-06-09 09:00 BST.
	if want := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC); !ok.NextRun.Equal(want) {
		t.Errorf("next run = %v, want %v", ok.NextRun, want)
	}

	resp = do(t, ts, http.MethodPost, "/api/cron/validate", nil, map[string]string{"expression": "0 9 * *"})
	expectStatus(t, resp, http.StatusOK)
	var bad broker.CronCheck
	decodeJSON(t, resp, &bad)
	if bad.Valid || bad.Error == "" {
		t.Errorf("got %+v, want invalid with error", bad)
	}
}
