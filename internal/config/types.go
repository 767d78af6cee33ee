package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warden/internal/schedule"
)

// File is the raw, decoded configuration. Fields mirror the accepted
// option names; heterogeneous values (jobs as names or objects, timing as
// number/string/bool) keep their raw shape here and are collapsed by
// Normalize.
type File struct {
	// Root is the directory job files are discovered in. Empty disables
	// discovery (jobs must be fully declared).
	Root string `json:"root,omitempty"`

	// DoRootCheck controls whether an empty discovery result is checked at
	// construction. Defaults to true.
	DoRootCheck *bool `json:"doRootCheck,omitempty"`

	// SilenceRootCheckError downgrades a failed root check from an error
	// log to nothing.
	SilenceRootCheckError bool `json:"silenceRootCheckError,omitempty"`

	// AcceptedExtensions filters discoverable job files. Must be a
	// non-empty array of strings when present; kept raw so a literal
	// false or non-array fails with a fixed message.
	AcceptedExtensions json.RawMessage `json:"acceptedExtensions,omitempty"`

	// Timeout and Interval are scheduler-wide defaults, applied to jobs
	// whose own field is the literal true.
	Timeout  *TimingValue `json:"timeout,omitempty"`
	Interval *TimingValue `json:"interval,omitempty"`

	Timezone   string                 `json:"timezone,omitempty"`
	HasSeconds bool                   `json:"hasSeconds,omitempty"`
	Cron       *schedule.CronValidate `json:"cronValidate,omitempty"`

	Jobs []JobEntry `json:"jobs,omitempty"`

	// RemoveCompleted deletes a job's registry entry after its worker
	// exits successfully. Jobs may override it individually.
	RemoveCompleted bool `json:"removeCompleted,omitempty"`

	// CloseWorkerAfterMs bounds graceful worker shutdown before forced
	// termination. 0 waits indefinitely.
	CloseWorkerAfterMs int64 `json:"closeWorkerAfterMs,omitempty"`

	// Logger may be the literal false (substitute a no-op logger) or a
	// sink configuration object.
	Logger *LoggerValue `json:"logger,omitempty"`

	// Watch keeps the registry in sync with the job root via fsnotify.
	Watch bool `json:"watch,omitempty"`

	// StopTimeout bounds global Stop() settlement. Go duration string.
	StopTimeout string `json:"stopTimeout,omitempty"`

	History HistoryConfig `json:"history,omitempty"`
}

// HistoryConfig controls the run-history store.
//
// Driver values: "" or "none" (disabled), "memory", "sqlite".
type HistoryConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busyTimeout,omitempty"` // sqlite only; Go duration string
	Keep        int    `json:"keep,omitempty"`        // rows retained per prune, 0 = default
}

// LoggerValue is either the literal false or a sink configuration.
type LoggerValue struct {
	Disabled bool
	Level    string
	Console  *bool
	FilePath string
}

func (v *LoggerValue) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if bytes.Equal(t, []byte("false")) {
		v.Disabled = true
		return nil
	}
	if bytes.Equal(t, []byte("true")) {
		return nil // default sinks
	}
	var obj struct {
		Level    string `json:"level,omitempty"`
		Console  *bool  `json:"console,omitempty"`
		FilePath string `json:"filePath,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(t))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	v.Level = obj.Level
	v.Console = obj.Console
	v.FilePath = obj.FilePath
	return nil
}

// TimingValue is a raw timeout/interval: a number (milliseconds), a string
// (duration or human phrase), true (use the scheduler-wide default), or
// false (explicitly none).
type TimingValue struct {
	Disabled bool
	Value    *schedule.Value
}

func (v *TimingValue) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	switch {
	case bytes.Equal(t, []byte("false")):
		v.Disabled = true
		return nil
	case bytes.Equal(t, []byte("true")):
		v.Value = schedule.UseDefault()
		return nil
	case len(t) > 0 && t[0] == '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty timing value")
		}
		v.Value = schedule.Phrase(s)
		return nil
	default:
		var ms int64
		if err := json.Unmarshal(t, &ms); err != nil {
			return fmt.Errorf("timing value must be a number, string, or boolean: %s", string(t))
		}
		v.Value = schedule.Millis(ms)
		return nil
	}
}

// JobConfig is one fully-declared job.
type JobConfig struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`

	Timeout  *TimingValue `json:"timeout,omitempty"`
	Interval *TimingValue `json:"interval,omitempty"`
	Cron     string       `json:"cron,omitempty"`

	Cronv *schedule.CronValidate `json:"cronValidate,omitempty"`
	Date  *time.Time             `json:"date,omitempty"`

	// HasSeconds must be a boolean when present; kept raw so a
	// non-boolean fails construction naming the job.
	HasSeconds json.RawMessage `json:"hasSeconds,omitempty"`

	WorkerData         json.RawMessage `json:"workerData,omitempty"`
	CloseWorkerAfterMs *int64          `json:"closeWorkerAfterMs,omitempty"`
	RunImmediately     bool            `json:"runImmediately,omitempty"`
	RemoveCompleted    *bool           `json:"removeCompleted,omitempty"`
}

// JobEntry accepts either a bare name (resolved against the job root) or a
// full JobConfig object.
type JobEntry struct {
	JobConfig
	// BareName is set when the entry was supplied as a plain string.
	BareName bool `json:"-"`
}

func (e *JobEntry) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && t[0] == '"' {
		var name string
		if err := json.Unmarshal(t, &name); err != nil {
			return err
		}
		e.JobConfig = JobConfig{Name: name}
		e.BareName = true
		return nil
	}
	var cfg JobConfig
	dec := json.NewDecoder(bytes.NewReader(t))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return err
	}
	e.JobConfig = cfg
	return nil
}
