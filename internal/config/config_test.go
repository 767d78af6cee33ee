package config

import (
	"strings"
	"testing"
	"time"

	"warden/internal/schedule"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	raw := `{
		"root": "/var/lib/warden/jobs",
		"timezone": "UTC",
		"hasSeconds": true,
		"jobs": [
			"backup",
			{"name": "report", "cron": "0 9 * * 1", "workerData": {"to": "ops"}}
		],
		"closeWorkerAfterMs": 5000,
		"stopTimeout": "45s"
	}`
	f, err := Decode("warden.json", []byte(raw))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(f.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(f.Jobs))
	}
	if !f.Jobs[0].BareName || f.Jobs[0].Name != "backup" {
		t.Fatalf("first job = %+v, want bare name backup", f.Jobs[0])
	}
	if f.Jobs[1].BareName || f.Jobs[1].Cron != "0 9 * * 1" {
		t.Fatalf("second job = %+v", f.Jobs[1])
	}

	opts, err := f.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if opts.Location.String() != "UTC" || !opts.HasSeconds {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.CloseWorkerAfter != 5*time.Second || opts.StopTimeout != 45*time.Second {
		t.Fatalf("durations: close=%v stop=%v", opts.CloseWorkerAfter, opts.StopTimeout)
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	raw := `
root: /var/lib/warden/jobs
jobs:
  - backup
  - name: cleanup
    interval: 2 hours
logger:
  level: debug
history:
  driver: memory
  keep: 100
`
	f, err := Decode("warden.yaml", []byte(raw))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(f.Jobs) != 2 || f.Jobs[1].Interval == nil {
		t.Fatalf("jobs = %+v", f.Jobs)
	}
	if f.Jobs[1].Interval.Value.Kind != schedule.ValuePhrase {
		t.Fatalf("interval kind = %v, want phrase", f.Jobs[1].Interval.Value.Kind)
	}
	if f.Logger == nil || f.Logger.Level != "debug" {
		t.Fatalf("logger = %+v", f.Logger)
	}
	opts, err := f.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if opts.HistoryDriver != "memory" || opts.HistoryKeep != 100 {
		t.Fatalf("history opts = %+v", opts)
	}
	// Unset stopTimeout falls back to the default bound.
	if opts.StopTimeout != DefaultStopTimeout {
		t.Fatalf("StopTimeout = %v, want default %v", opts.StopTimeout, DefaultStopTimeout)
	}
}

func TestDecodeUnknownField(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"roots": "/tmp"}`)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestTimingValueShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		disabled bool
		kind     schedule.ValueKind
	}{
		{name: "number", raw: `1500`, kind: schedule.ValueMillis},
		{name: "phrase", raw: `"3 months"`, kind: schedule.ValuePhrase},
		{name: "true", raw: `true`, kind: schedule.ValueDefault},
		{name: "false", raw: `false`, disabled: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var v TimingValue
			if err := v.UnmarshalJSON([]byte(tt.raw)); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if v.Disabled != tt.disabled {
				t.Fatalf("Disabled = %v", v.Disabled)
			}
			if !tt.disabled && v.Value.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", v.Value.Kind, tt.kind)
			}
		})
	}

	var v TimingValue
	if err := v.UnmarshalJSON([]byte(`{}`)); err == nil {
		t.Fatal("expected error for object timing value")
	}
}

func TestLoggerFalse(t *testing.T) {
	t.Parallel()
	f, err := Decode("c.json", []byte(`{"logger": false}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	opts, err := f.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !opts.LoggerDisabled {
		t.Fatal("logger:false should disable logging")
	}
}

func TestAcceptedExtensions(t *testing.T) {
	t.Parallel()

	// Absent: defaults apply.
	f, err := Decode("c.json", []byte(`{}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	opts, err := f.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(opts.AcceptedExtensions) != len(DefaultExtensions) {
		t.Fatalf("extensions = %v", opts.AcceptedExtensions)
	}

	// Dot-less entries are normalized.
	f, err = Decode("c.json", []byte(`{"acceptedExtensions": ["sh", ".RB"]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	opts, err = f.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if opts.AcceptedExtensions[0] != ".sh" || opts.AcceptedExtensions[1] != ".rb" {
		t.Fatalf("extensions = %v", opts.AcceptedExtensions)
	}

	// Malformed values fail with the fixed message.
	for _, raw := range []string{
		`{"acceptedExtensions": false}`,
		`{"acceptedExtensions": []}`,
		`{"acceptedExtensions": ["sh", ""]}`,
		`{"acceptedExtensions": "sh"}`,
	} {
		f, err := Decode("c.json", []byte(raw))
		if err != nil {
			t.Fatalf("Decode(%s) error: %v", raw, err)
		}
		if _, err := f.Normalize(); err == nil || err.Error() != ErrAcceptedExtensions {
			t.Fatalf("Normalize(%s) err = %v, want %q", raw, err, ErrAcceptedExtensions)
		}
	}
}

func TestNormalizeJobValidation(t *testing.T) {
	t.Parallel()

	// Duplicate names fail with both positions.
	f, err := Decode("c.json", []byte(`{"jobs": ["backup", {"name": "backup"}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, err := f.Normalize(); err == nil || !strings.Contains(err.Error(), "duplicate name") {
		t.Fatalf("err = %v, want duplicate name", err)
	}

	// A non-boolean hasSeconds fails naming position and job.
	f, err = Decode("c.json", []byte(`{"jobs": [{"name": "report", "hasSeconds": "yes"}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	_, err = f.Normalize()
	if err == nil || !strings.Contains(err.Error(), `job #0 ("report")`) {
		t.Fatalf("err = %v, want job #0 (\"report\")", err)
	}

	// Empty names fail with position.
	f, err = Decode("c.json", []byte(`{"jobs": [{"name": "  "}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, err := f.Normalize(); err == nil || !strings.Contains(err.Error(), "job #0 has no name") {
		t.Fatalf("err = %v, want no-name error", err)
	}
}

func TestGlobalTimingRejectsAtPhrase(t *testing.T) {
	t.Parallel()
	f, err := Decode("c.json", []byte(`{"interval": "at 13:26"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, err := f.Normalize(); err == nil {
		t.Fatal("global at-phrase interval should be rejected")
	}
}

func TestBadTimezone(t *testing.T) {
	t.Parallel()
	f, err := Decode("c.json", []byte(`{"timezone": "Mars/Olympus"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, err := f.Normalize(); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestJobTiming(t *testing.T) {
	t.Parallel()
	f, err := Decode("c.json", []byte(`{"jobs": [{"name": "j", "timeout": 100, "interval": false}]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	raw, err := f.Jobs[0].Timing()
	if err != nil {
		t.Fatalf("Timing error: %v", err)
	}
	if raw.Timeout == nil || raw.Timeout.Millis != 100 {
		t.Fatalf("timeout = %+v", raw.Timeout)
	}
	// interval:false must not surface as a value.
	if raw.Interval != nil {
		t.Fatalf("interval = %+v, want nil", raw.Interval)
	}
}
