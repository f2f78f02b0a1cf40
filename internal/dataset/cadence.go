package dataset

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Cadence decides when a cached dataset is old enough to re-download.
// The zero value never expires a cache entry.
type Cadence struct {
	kind   string
	maxAge time.Duration
}

// Never keeps cached data until it is cleared or force-refreshed.
var Never = Cadence{}

// Daily, Weekly and Monthly expire cache entries downloaded before the current period began.
var (
	Daily   = Cadence{kind: "daily"}
	Weekly  = Cadence{kind: "weekly"}
	Monthly = Cadence{kind: "monthly"}
)

// MaxAge expires cache entries older than d.
func MaxAge(d time.Duration) Cadence {
	return Cadence{kind: "max_age", maxAge: d}
}

// ParseCadence accepts "never", "daily", "weekly", "monthly" or a Go duration such as "72h".
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return Never, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return Never, eris.Errorf("unknown refresh cadence: %q (valid: never, daily, weekly, monthly, or a duration like 72h)", s)
	}
	if d <= 0 {
		return Never, eris.Errorf("refresh max age must be positive, got %s", d)
	}
	return MaxAge(d), nil
}

// String returns the configuration form of the cadence.
func (c Cadence) String() string {
	switch c.kind {
	case "":
		return "never"
	case "max_age":
		return c.maxAge.String()
	default:
		return c.kind
	}
}

// Stale reports whether data downloaded at lastDownload should be re-fetched at now.
func (c Cadence) Stale(now, lastDownload time.Time) bool {
	now = now.UTC()
	switch c.kind {
	case "daily":
		return dailySchedule(now, lastDownload)
	case "weekly":
		return weeklySchedule(now, lastDownload)
	case "monthly":
		return monthlySchedule(now, lastDownload)
	case "max_age":
		return now.Sub(lastDownload) > c.maxAge
	default:
		return false
	}
}

func monthlySchedule(now, last time.Time) bool {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return last.Before(thisMonth)
}

func weeklySchedule(now, last time.Time) bool {
	// Start of the current ISO week (Monday).
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := time.Date(now.Year(), now.Month(), now.Day()-(weekday-1), 0, 0, 0, 0, time.UTC)
	return last.Before(weekStart)
}

func dailySchedule(now, last time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return last.Before(today)
}
