package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the run-history store.
//
// Driver values:
//   - "memory": in-process ring buffer, lost on exit
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Keep        int           // rows retained when pruning; 0 means default
}

// RunEntry records one worker run. Keep it compact and schema-stable.
type RunEntry struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	// Outcome is "ok", "error", or "killed".
	Outcome string
	Error   string
}

// Outcome values for RunEntry.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeKilled = "killed"
)
