// Package storage persists the scheduler's run history.
//
// One row per worker run: job name, start instant, duration, outcome.
// This is an audit log, not resumable job state; the scheduler never
// reads it back to make decisions.
package storage
