// Package schedule normalizes heterogeneous job timing configuration into
// a canonical descriptor.
//
// A job may be timed by a one-shot delay, a repeating interval, a cron
// expression, an absolute date, a delay-then-repeat combination, or not at
// all (explicit Run only). Raw values arrive as milliseconds, duration
// strings, human phrases ("3 months", "at 13:26"), or cron specs; Resolve
// collapses them once, at registration time, into a Descriptor. Nothing
// downstream ever branches on the raw shape again.
//
// Descriptors are pure: Next and StartupAt are deterministic functions of
// the reference instant. One-shot exhaustion is tracked by the timer bank,
// not here.
package schedule
