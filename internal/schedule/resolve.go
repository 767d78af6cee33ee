package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"warden/internal/humandur"
)

// DefaultPreset is the cron validation preset used when the configuration
// does not name one.
const DefaultPreset = "default"

// Override adjusts a cron preset. Nil pointers mean "preset default".
type Override struct {
	// UseSeconds forces a 6-field expression (seconds required).
	UseSeconds *bool `json:"useSeconds,omitempty"`
	// AllowDescriptors permits "@hourly"/"@every 5m" style specs.
	AllowDescriptors *bool `json:"allowDescriptors,omitempty"`
}

// CronValidate selects how cron expressions are validated: a named preset
// plus an override table.
type CronValidate struct {
	Preset   string   `json:"preset"`
	Override Override `json:"override"`
}

func (cv CronValidate) withDefaults() CronValidate {
	if strings.TrimSpace(cv.Preset) == "" {
		cv.Preset = DefaultPreset
	}
	return cv
}

// ValueKind discriminates a raw timeout/interval value.
type ValueKind int

const (
	// ValueMillis is a numeric millisecond duration.
	ValueMillis ValueKind = iota
	// ValuePhrase is a human phrase ("3 months", "45s", "at 13:26").
	ValuePhrase
	// ValueDefault requests the scheduler-wide default (literal true in config).
	ValueDefault
)

// Value is a raw timeout or interval as supplied by configuration.
type Value struct {
	Kind   ValueKind
	Millis int64
	Phrase string
}

// Millis builds a numeric Value.
func Millis(ms int64) *Value { return &Value{Kind: ValueMillis, Millis: ms} }

// Phrase builds a phrase Value.
func Phrase(s string) *Value { return &Value{Kind: ValuePhrase, Phrase: s} }

// UseDefault builds a Value deferring to the scheduler-wide default.
func UseDefault() *Value { return &Value{Kind: ValueDefault} }

// Raw is a job's timing configuration before resolution. Nil/zero fields
// are unset.
type Raw struct {
	Cron         string
	CronValidate *CronValidate // per-job override of the global table
	Timeout      *Value
	Interval     *Value
	Date         time.Time
	HasSeconds   *bool // per-job override of the global seconds flag
}

// Defaults are the scheduler-wide settings a Raw resolves against.
type Defaults struct {
	Location   *time.Location
	HasSeconds bool
	Cron       CronValidate
	Timeout    time.Duration // applied when a job's timeout is literal true
	Interval   time.Duration // applied when a job's interval is literal true
}

// Resolve collapses raw timing into a canonical Descriptor.
//
// Exactly one timing family may be present: cron, date, or
// timeout/interval (which combine into delay-then-repeat). Contradictory
// combinations are validation errors.
func Resolve(raw Raw, def Defaults) (Descriptor, error) {
	loc := def.Location
	if loc == nil {
		loc = time.Local
	}

	hasCron := strings.TrimSpace(raw.Cron) != ""
	hasDate := !raw.Date.IsZero()
	hasTimeout := raw.Timeout != nil
	hasInterval := raw.Interval != nil

	switch {
	case hasCron && hasDate:
		return Descriptor{}, errors.New("both cron and date set")
	case hasCron && (hasTimeout || hasInterval):
		return Descriptor{}, errors.New("cron cannot be combined with timeout or interval")
	case hasDate && (hasTimeout || hasInterval):
		return Descriptor{}, errors.New("date cannot be combined with timeout or interval")
	}

	hasSeconds := def.HasSeconds
	if raw.HasSeconds != nil {
		hasSeconds = *raw.HasSeconds
	}

	switch {
	case hasCron:
		cv := def.Cron
		if raw.CronValidate != nil {
			cv = *raw.CronValidate
		}
		cv = cv.withDefaults()
		sched, err := parseCron(raw.Cron, cv, hasSeconds)
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{
			kind:       Cron,
			spec:       strings.TrimSpace(raw.Cron),
			sched:      sched,
			preset:     cv.Preset,
			override:   cv.Override,
			hasSeconds: hasSeconds,
			loc:        loc,
		}, nil

	case hasDate:
		return Descriptor{kind: Date, date: raw.Date.In(loc), loc: loc}, nil

	case hasTimeout && hasInterval:
		d := Descriptor{kind: TimeoutThenInterval, loc: loc}
		if err := applyValue(&d.timeout, &d.timeoutAt, raw.Timeout, def.Timeout); err != nil {
			return Descriptor{}, fmt.Errorf("timeout: %w", err)
		}
		if err := applyValue(&d.interval, &d.intervalAt, raw.Interval, def.Interval); err != nil {
			return Descriptor{}, fmt.Errorf("interval: %w", err)
		}
		return d, nil

	case hasTimeout:
		d := Descriptor{kind: Timeout, loc: loc}
		if err := applyValue(&d.timeout, &d.timeoutAt, raw.Timeout, def.Timeout); err != nil {
			return Descriptor{}, fmt.Errorf("timeout: %w", err)
		}
		return d, nil

	case hasInterval:
		d := Descriptor{kind: Interval, loc: loc}
		if err := applyValue(&d.interval, &d.intervalAt, raw.Interval, def.Interval); err != nil {
			return Descriptor{}, fmt.Errorf("interval: %w", err)
		}
		return d, nil
	}

	// No timing: the job runs only on explicit Run.
	return Descriptor{kind: None, loc: loc}, nil
}

func applyValue(dur *time.Duration, atPhrase *string, v *Value, def time.Duration) error {
	switch v.Kind {
	case ValueMillis:
		if v.Millis < 0 {
			return fmt.Errorf("negative duration %dms", v.Millis)
		}
		*dur = time.Duration(v.Millis) * time.Millisecond
		return nil
	case ValuePhrase:
		if humandur.IsAt(v.Phrase) {
			// Validate the clock portion now; resolution against a
			// reference instant happens at arm time.
			if _, err := humandur.At(v.Phrase, time.Now()); err != nil {
				return err
			}
			*atPhrase = strings.TrimSpace(v.Phrase)
			return nil
		}
		d, err := humandur.Parse(v.Phrase)
		if err != nil {
			return err
		}
		*dur = d
		return nil
	case ValueDefault:
		*dur = def
		return nil
	default:
		return fmt.Errorf("unknown timing value kind %d", v.Kind)
	}
}

// parseCron validates expr against the preset + override table and returns
// the parsed schedule.
func parseCron(expr string, cv CronValidate, hasSeconds bool) (cron.Schedule, error) {
	opts, err := parserOptions(cv, hasSeconds)
	if err != nil {
		return nil, err
	}
	sched, err := cron.NewParser(opts).Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q (preset %s): %w", expr, cv.Preset, err)
	}
	return sched, nil
}

func parserOptions(cv CronValidate, hasSeconds bool) (cron.ParseOption, error) {
	base := cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow

	descriptors := true
	switch cv.Preset {
	case DefaultPreset:
		// descriptors allowed
	case "standard":
		descriptors = false
	default:
		return 0, fmt.Errorf("unknown cron preset %q", cv.Preset)
	}
	if cv.Override.AllowDescriptors != nil {
		descriptors = *cv.Override.AllowDescriptors
	}
	if descriptors {
		base |= cron.Descriptor
	}

	secondsRequired := cv.Override.UseSeconds != nil && *cv.Override.UseSeconds
	switch {
	case secondsRequired:
		base |= cron.Second
	case hasSeconds:
		base |= cron.SecondOptional
	}
	return base, nil
}
