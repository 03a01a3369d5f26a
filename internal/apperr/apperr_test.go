package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := NewNotFound("skill", "abc")
	if err.Error() != "NOT_FOUND: skill not found: abc" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
}

func TestMissingCapabilityDetails(t *testing.T) {
	err := NewMissingCapability("digest", []string{"ats", "email"})
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	missing, ok := err.Details["missing"].([]string)
	if !ok || len(missing) != 2 {
		t.Errorf("Details = %v", err.Details)
	}
	want := "skill digest has missing or insufficient access for: [ats email]"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestIsAndFrom(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("list skills: %w", NewUnavailable(cause))

	if !Is(wrapped, CodeUnavailable) {
		t.Error("Is should see through wrapping")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("cause should be reachable")
	}
	if From(wrapped).Status != 503 {
		t.Errorf("From status = %d", From(wrapped).Status)
	}
	if From(errors.New("boom")).Code != CodeInternal {
		t.Error("plain errors become internal")
	}
}
