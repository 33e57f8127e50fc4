// Package backup evaluates backup schedules and builds restore requests.
package backup

import (
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// DefaultTimezone is used when a schedule does not name one.
const DefaultTimezone = "UTC"

// ValidateSchedule checks a cron expression and an IANA timezone.
func ValidateSchedule(expr, tz string) error {
	_, err := NextTrigger(expr, tz, time.Now())
	return err
}

// NextTrigger returns the first firing of expr strictly after after,
// evaluated in tz and reported in UTC.
func NextTrigger(expr, tz string, after time.Time) (time.Time, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	parsed, err := cronexpr.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	next := parsed.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires after %s", expr, after.Format(time.RFC3339))
	}
	return next.UTC(), nil
}
