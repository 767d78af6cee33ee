// Package scheduler is warden's control surface.
//
// # Overview
//
// A Scheduler owns the job registry, the timer bank, and the worker
// supervisor, and composes them into atomic, idempotent operations:
// Start, Stop, Run, Add, Remove. Each operation addresses one job by
// name or, with no name, every registered job.
//
// # Timing
//
// Each job's timing is resolved once, at registration, into a canonical
// descriptor (see internal/schedule): a one-shot delay, a repeating
// interval, a cron expression, an absolute date, a delay-then-repeat
// combination, or nothing (explicit Run only). Start arms timers from the
// descriptor; a repeat timer is re-armed after every fire using the fire
// instant as the reference, so drift does not accumulate hidden state.
//
// # Workers and events
//
// A fire spawns at most one worker per job; if the previous run is still
// active the fire is skipped. Worker lifecycle flows back through the
// supervisor as "worker created" / "worker deleted" events (plus message
// and error events), with state mutations committed before the event that
// announces them.
//
// # Lifecycle
//
// A global Stop flips the running flag, cancels every timer, and blocks
// until all workers have settled (each bounded by its closeWorkerAfter,
// the whole operation by the caller's context).
package scheduler
