package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"warden/internal/humandur"
)

// Kind discriminates the timing union. Exactly one kind per descriptor.
type Kind int

const (
	None Kind = iota
	Timeout
	Interval
	Cron
	Date
	TimeoutThenInterval
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Timeout:
		return "timeout"
	case Interval:
		return "interval"
	case Cron:
		return "cron"
	case Date:
		return "date"
	case TimeoutThenInterval:
		return "timeout+interval"
	default:
		return "unknown"
	}
}

// Descriptor is the canonical, resolved form of a job's timing rule.
// Immutable after Resolve.
type Descriptor struct {
	kind Kind

	timeout   time.Duration
	timeoutAt string // "at HH:MM" phrase; takes precedence over timeout

	interval   time.Duration
	intervalAt string // "at HH:MM" phrase; daily recurrence at that wall-clock time

	spec       string // raw cron expression
	sched      cron.Schedule
	preset     string
	override   Override
	hasSeconds bool

	date time.Time

	loc *time.Location
}

func (d Descriptor) Kind() Kind { return d.kind }

// Repeats reports whether the descriptor re-arms after a fire.
func (d Descriptor) Repeats() bool {
	switch d.kind {
	case Interval, Cron, TimeoutThenInterval:
		return true
	}
	return false
}

// HasStartup reports whether the descriptor begins with a one-shot delay
// (timeout or absolute date) before any repeating portion.
func (d Descriptor) HasStartup() bool {
	switch d.kind {
	case Timeout, Date, TimeoutThenInterval:
		return true
	}
	return false
}

// StartupAt computes the one-shot fire instant relative to now.
// ok is false when the descriptor has no startup portion, or when an
// absolute date has already passed (a past date never fires).
func (d Descriptor) StartupAt(now time.Time) (time.Time, bool) {
	switch d.kind {
	case Timeout, TimeoutThenInterval:
		if d.timeoutAt != "" {
			at, err := humandur.At(d.timeoutAt, now.In(d.location()))
			if err != nil {
				return time.Time{}, false
			}
			return at, true
		}
		return now.Add(d.timeout), true
	case Date:
		if !d.date.After(now) {
			return time.Time{}, false
		}
		return d.date, true
	}
	return time.Time{}, false
}

// Next computes the next repeating fire instant strictly derived from
// after. It is pure: the same reference instant always yields the same
// result. A zero interval yields after itself ("as fast as the event loop
// allows"), never "never". ok is false for non-repeating descriptors and
// for cron schedules with no future fire.
func (d Descriptor) Next(after time.Time) (time.Time, bool) {
	switch d.kind {
	case Interval, TimeoutThenInterval:
		if d.intervalAt != "" {
			at, err := humandur.At(d.intervalAt, after.In(d.location()))
			if err != nil {
				return time.Time{}, false
			}
			return at, true
		}
		return after.Add(d.interval), true
	case Cron:
		next := d.sched.Next(after.In(d.location()))
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// CronSpec returns the raw cron expression ("" for non-cron descriptors).
func (d Descriptor) CronSpec() string { return d.spec }

// Preset returns the cron validation preset the descriptor was resolved
// against ("" for non-cron descriptors).
func (d Descriptor) Preset() string { return d.preset }

// CronOverride returns the override table applied on top of the preset.
func (d Descriptor) CronOverride() Override { return d.override }

// HasSeconds reports whether the cron expression may carry a seconds field.
func (d Descriptor) HasSeconds() bool { return d.hasSeconds }

func (d Descriptor) Timeout() time.Duration  { return d.timeout }
func (d Descriptor) Interval() time.Duration { return d.interval }
func (d Descriptor) Date() time.Time         { return d.date }

func (d Descriptor) location() *time.Location {
	if d.loc != nil {
		return d.loc
	}
	return time.Local
}

func (d Descriptor) String() string {
	switch d.kind {
	case Timeout:
		if d.timeoutAt != "" {
			return "once " + d.timeoutAt
		}
		return "once after " + d.timeout.String()
	case Interval:
		if d.intervalAt != "" {
			return "daily " + d.intervalAt
		}
		return "every " + d.interval.String()
	case Cron:
		return "cron " + d.spec
	case Date:
		return "at " + d.date.Format(time.RFC3339)
	case TimeoutThenInterval:
		return "after " + d.timeout.String() + " then every " + d.interval.String()
	default:
		return "manual"
	}
}
