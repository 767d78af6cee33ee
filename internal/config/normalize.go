package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/humandur"
	"warden/internal/schedule"
)

// ErrAcceptedExtensions is the fixed message for a malformed
// acceptedExtensions value. Tests and callers match it literally.
const ErrAcceptedExtensions = "acceptedExtensions must be a non-empty array of extension strings"

// DefaultExtensions is the discovery filter applied when the config does
// not set acceptedExtensions.
var DefaultExtensions = []string{".sh", ".js", ".py"}

// DefaultStopTimeout bounds global Stop settlement when the config does
// not set stopTimeout.
const DefaultStopTimeout = 30 * time.Second

// Options is the normalized, validated configuration the scheduler is
// constructed from.
type Options struct {
	Root                  string
	DoRootCheck           bool
	SilenceRootCheckError bool
	AcceptedExtensions    []string

	Location   *time.Location
	HasSeconds bool
	Cron       schedule.CronValidate

	DefaultTimeout  time.Duration
	DefaultInterval time.Duration

	Jobs []JobEntry

	RemoveCompleted  bool
	CloseWorkerAfter time.Duration
	Watch            bool
	StopTimeout      time.Duration

	LoggerDisabled bool
	LogLevel       string
	LogConsole     bool
	LogFile        string

	HistoryDriver      string
	HistoryPath        string
	HistoryBusyTimeout time.Duration
	HistoryKeep        int
}

// Normalize validates the raw file and collapses it into Options.
// All errors here are constructor-fatal configuration errors.
func (f *File) Normalize() (Options, error) {
	opts := Options{
		Root:                  strings.TrimSpace(f.Root),
		DoRootCheck:           f.DoRootCheck == nil || *f.DoRootCheck,
		SilenceRootCheckError: f.SilenceRootCheckError,
		RemoveCompleted:       f.RemoveCompleted,
		Watch:                 f.Watch,
		Jobs:                  f.Jobs,
		HasSeconds:            f.HasSeconds,
		LogConsole:            true,
		HistoryDriver:         strings.TrimSpace(f.History.Driver),
		HistoryPath:           f.History.Path,
		HistoryKeep:           f.History.Keep,
	}

	exts, err := parseExtensions(f.AcceptedExtensions)
	if err != nil {
		return Options{}, err
	}
	opts.AcceptedExtensions = exts

	loc := time.Local
	if tz := strings.TrimSpace(f.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return Options{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}
	opts.Location = loc

	cv := schedule.CronValidate{Preset: schedule.DefaultPreset}
	if f.Cron != nil {
		cv = *f.Cron
		if strings.TrimSpace(cv.Preset) == "" {
			cv.Preset = schedule.DefaultPreset
		}
	}
	opts.Cron = cv

	if opts.DefaultTimeout, err = globalTiming("timeout", f.Timeout); err != nil {
		return Options{}, err
	}
	if opts.DefaultInterval, err = globalTiming("interval", f.Interval); err != nil {
		return Options{}, err
	}

	if f.CloseWorkerAfterMs < 0 {
		return Options{}, errors.New("closeWorkerAfterMs must be >= 0")
	}
	opts.CloseWorkerAfter = time.Duration(f.CloseWorkerAfterMs) * time.Millisecond

	if opts.StopTimeout, err = ParseDurationOrDefault("stopTimeout", f.StopTimeout, DefaultStopTimeout); err != nil {
		return Options{}, err
	}
	if opts.HistoryBusyTimeout, err = ParseDurationField("history.busyTimeout", f.History.BusyTimeout); err != nil {
		return Options{}, err
	}

	if f.Logger != nil {
		opts.LoggerDisabled = f.Logger.Disabled
		opts.LogLevel = f.Logger.Level
		opts.LogFile = f.Logger.FilePath
		if f.Logger.Console != nil {
			opts.LogConsole = *f.Logger.Console
		}
	}

	// Per-job structural validation, fail-fast with position and name.
	seen := make(map[string]int, len(f.Jobs))
	for i, j := range f.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return Options{}, fmt.Errorf("job #%d has no name", i)
		}
		if prev, dup := seen[name]; dup {
			return Options{}, fmt.Errorf("job #%d has a duplicate name %q (already used by job #%d)", i, name, prev)
		}
		seen[name] = i
		if _, err := j.HasSecondsBool(); err != nil {
			return Options{}, fmt.Errorf("job #%d (%q): %w", i, name, err)
		}
	}

	return opts, nil
}

// HasSecondsBool decodes the raw hasSeconds field. Nil means unset; a
// non-boolean value is a validation error.
func (j JobConfig) HasSecondsBool() (*bool, error) {
	t := bytes.TrimSpace(j.HasSeconds)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil, nil
	}
	switch {
	case bytes.Equal(t, []byte("true")):
		v := true
		return &v, nil
	case bytes.Equal(t, []byte("false")):
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("hasSeconds must be a boolean, got %s", string(t))
	}
}

// Timing converts the job's raw timing fields into the resolver input.
func (j JobConfig) Timing() (schedule.Raw, error) {
	hs, err := j.HasSecondsBool()
	if err != nil {
		return schedule.Raw{}, err
	}
	raw := schedule.Raw{
		Cron:         strings.TrimSpace(j.Cron),
		CronValidate: j.Cronv,
		HasSeconds:   hs,
	}
	if j.Date != nil {
		raw.Date = *j.Date
	}
	if j.Timeout != nil && !j.Timeout.Disabled {
		raw.Timeout = j.Timeout.Value
	}
	if j.Interval != nil && !j.Interval.Disabled {
		raw.Interval = j.Interval.Value
	}
	return raw, nil
}

func parseExtensions(raw json.RawMessage) ([]string, error) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return append([]string(nil), DefaultExtensions...), nil
	}
	var exts []string
	if err := json.Unmarshal(t, &exts); err != nil {
		return nil, errors.New(ErrAcceptedExtensions)
	}
	if len(exts) == 0 {
		return nil, errors.New(ErrAcceptedExtensions)
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			return nil, errors.New(ErrAcceptedExtensions)
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, strings.ToLower(e))
	}
	return out, nil
}

// globalTiming resolves a scheduler-wide default timeout/interval. Only
// concrete durations make sense globally; "use default" and time-of-day
// phrases are rejected.
func globalTiming(field string, v *TimingValue) (time.Duration, error) {
	if v == nil || v.Disabled || v.Value == nil {
		return 0, nil
	}
	switch v.Value.Kind {
	case schedule.ValueMillis:
		if v.Value.Millis < 0 {
			return 0, fmt.Errorf("%s must be >= 0", field)
		}
		return time.Duration(v.Value.Millis) * time.Millisecond, nil
	case schedule.ValuePhrase:
		if humandur.IsAt(v.Value.Phrase) {
			return 0, fmt.Errorf("%s: time-of-day phrases are only valid per job", field)
		}
		d, err := humandur.Parse(v.Value.Phrase)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%s cannot be the literal true", field)
	}
}
