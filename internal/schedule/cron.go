package schedule

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // deterministic zone data regardless of host

	"github.com/robfig/cron/v3"
)

// parser accepts exactly the five standard fields. Descriptors such as
// @daily are rejected so stored expressions stay portable.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validation is the result of checking a cron expression.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Parse checks expr and returns the compiled schedule.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	if strings.Contains(expr, "TZ=") {
		return nil, fmt.Errorf("cron expression must not embed a timezone; pass it separately")
	}
	if n := len(strings.Fields(expr)); n != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields (minute hour day-of-month month day-of-week), got %d", n)
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched, nil
}

// ValidateCron reports whether expr is a valid 5-field cron expression.
func ValidateCron(expr string) Validation {
	if _, err := Parse(expr); err != nil {
		return Validation{Valid: false, Error: err.Error()}
	}
	return Validation{Valid: true}
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}
	return loc, nil
}

// NextRun returns the first activation of expr strictly after the given
// instant, evaluating fields in wall-clock time of tz. The result is UTC.
func NextRun(expr, tz string, after time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires", expr)
	}
	return next.UTC(), nil
}
