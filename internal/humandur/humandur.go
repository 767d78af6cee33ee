// Package humandur resolves human-readable interval phrases to durations.
//
// Job timing fields accept either raw milliseconds, Go duration strings
// ("45s", "2h30m"), spelled-out phrases ("3 months", "1 hour 30 minutes"),
// or time-of-day phrases ("at 13:26"). Time-of-day phrases are always
// resolved against the host's local time zone; a naive UTC computation
// here would shift the observed wall-clock fire time.
package humandur

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Coarse calendar units. Phrase durations are offsets, not calendar
// arithmetic: a month is a fixed 30 days and a year 365.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var units = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": Day, "day": Day, "days": Day,
	"w": Week, "week": Week, "weeks": Week,
	"mo": Month, "month": Month, "months": Month,
	"y": Year, "yr": Year, "yrs": Year, "year": Year, "years": Year,
}

// Parse resolves a duration phrase.
//
// Accepted forms, tried in order:
//   - bare number: milliseconds ("200", "1500.5")
//   - Go duration string ("45s", "2h30m")
//   - unit phrase: one or more "<number> <unit>" pairs ("3 months",
//     "1 hour 30 minutes"), optionally prefixed with "every"
//
// "at HH:MM" phrases are not durations; use At for those.
func Parse(phrase string) (time.Duration, error) {
	s := strings.TrimSpace(phrase)
	if s == "" {
		return 0, fmt.Errorf("empty interval phrase")
	}

	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("interval %q must be >= 0", phrase)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("interval %q must be >= 0", phrase)
		}
		return d, nil
	}

	fields := strings.Fields(strings.ToLower(s))
	if len(fields) > 0 && fields[0] == "every" {
		fields = fields[1:]
	}
	if len(fields) == 0 || len(fields)%2 != 0 {
		return 0, fmt.Errorf("unrecognized interval phrase %q", phrase)
	}

	var total time.Duration
	for i := 0; i < len(fields); i += 2 {
		n, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unrecognized interval phrase %q", phrase)
		}
		unit, ok := units[fields[i+1]]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q in interval phrase %q", fields[i+1], phrase)
		}
		total += time.Duration(n * float64(unit))
	}
	return total, nil
}

// IsAt reports whether the phrase is a time-of-day phrase ("at HH:MM").
func IsAt(phrase string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(phrase)), "at ")
}

// At resolves "at HH:MM" (or "at HH:MM:SS") to the next occurrence of that
// wall-clock time in now's location. If the target time today has already
// passed, it resolves to tomorrow.
func At(phrase string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(phrase)
	low := strings.ToLower(s)
	if !strings.HasPrefix(low, "at ") {
		return time.Time{}, fmt.Errorf("not a time-of-day phrase: %q", phrase)
	}
	hh, mm, ss, err := parseClock(strings.TrimSpace(s[3:]))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time-of-day phrase %q: %w", phrase, err)
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, ss, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target, nil
}

func parseClock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected HH:MM or HH:MM:SS, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, 0, 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return h, m, sec, nil
}
