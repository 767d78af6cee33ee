package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/discovery"
	"warden/internal/registry"
	"warden/internal/storage"
	"warden/internal/timerbank"
	"warden/internal/workers"
	logx "warden/pkg/logx"
)

// Start arms timers for the named jobs, or for every registered job when
// no name is given. Starting an already scheduled or running job is a
// no-op. A global Start also flips the running flag and, in watch mode,
// begins syncing the registry with the job root.
func (s *Scheduler) Start(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.targetsLocked(names)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		s.running = true
		if s.opts.Watch && s.watcher == nil && s.opts.Root != "" {
			w, werr := discovery.Watch(s.opts.Root, s.opts.AcceptedExtensions, s.log, s.watchAdd, s.watchRemove)
			if werr != nil {
				s.log.Warn("watch mode unavailable", logx.Err(werr))
			} else {
				s.watcher = w
			}
		}
	}
	for _, j := range jobs {
		s.startLocked(j)
	}
	return nil
}

func (s *Scheduler) startLocked(j *registry.Job) {
	switch s.states[j.Name] {
	case Scheduled, Running:
		return // idempotent
	case Terminated:
		return // exhausted one-shot; remove and re-add for a new schedule
	}

	now := time.Now()
	if at, ok := j.Timing.StartupAt(now); ok {
		name := j.Name
		s.bank.Arm(name, timerbank.Startup, at, func() { s.onStartupFire(name, at) })
		s.log.Debug("startup timer armed", logx.String("job", name), logx.Time("at", at))
	} else if j.Timing.Repeats() {
		if next, ok := j.Timing.Next(now); ok {
			name := j.Name
			s.bank.Arm(name, timerbank.Repeat, next, func() { s.onRepeatFire(name, next) })
			s.log.Debug("repeat timer armed", logx.String("job", name), logx.Time("at", next))
		}
	}
	// A job with no timing (and runImmediately unset) stays Scheduled
	// indefinitely without firing; only an explicit Run touches it.
	s.states[j.Name] = Scheduled

	if j.RunImmediately {
		go s.fire(j.Name)
	}
}

// onStartupFire runs when a job's one-shot delay elapses: arm the repeat
// portion (reference instant = this fire instant), then spawn.
func (s *Scheduler) onStartupFire(name string, firedAt time.Time) {
	s.mu.Lock()
	j, ok := s.reg.Get(name)
	if !ok || s.states[name] == Idle {
		// Removed or stopped between arm and fire.
		s.mu.Unlock()
		return
	}
	if j.Timing.Repeats() {
		if next, ok := j.Timing.Next(firedAt); ok {
			s.bank.Arm(name, timerbank.Repeat, next, func() { s.onRepeatFire(name, next) })
		}
	}
	s.mu.Unlock()
	s.fire(name)
}

// onRepeatFire runs on every repeating fire: re-arm from the fire
// instant, then spawn. Re-arming before spawning keeps the cadence
// independent of worker runtime.
func (s *Scheduler) onRepeatFire(name string, firedAt time.Time) {
	s.mu.Lock()
	j, ok := s.reg.Get(name)
	if !ok || s.states[name] == Idle {
		s.mu.Unlock()
		return
	}
	if next, ok := j.Timing.Next(firedAt); ok {
		s.bank.Arm(name, timerbank.Repeat, next, func() { s.onRepeatFire(name, next) })
	}
	s.mu.Unlock()
	s.fire(name)
}

// fire spawns a worker for a timer-triggered run. A still-active previous
// worker is not an error here: the fire is skipped (runs never overlap).
func (s *Scheduler) fire(name string) {
	err := s.spawn(name)
	if errors.Is(err, workers.ErrWorkerActive) {
		s.log.Debug("previous run still active; skipping fire", logx.String("job", name))
		return
	}
	if err != nil {
		s.log.Error("spawn failed", logx.String("job", name), logx.Err(err))
	}
}

// spawn launches the job's worker and transitions it to Running. The
// lock is held across Spawn so the Running state and run start commit
// before the exit hook (which takes the same lock) can observe the exit.
func (s *Scheduler) spawn(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", registry.ErrUnknown, name)
	}

	err := s.sup.Spawn(workers.Spec{Job: j.Name, Path: j.Path, Data: j.WorkerData}, j.CloseWorkerAfter)
	if err != nil {
		return err
	}
	s.states[name] = Running
	s.runStart[name] = time.Now()
	return nil
}

// Run immediately spawns workers for the named jobs (or all), bypassing
// timing and leaving armed timers untouched. Per-job conflicts (a worker
// already active) are collected, not thrown, so a bulk Run tolerates
// partial failure.
func (s *Scheduler) Run(names ...string) error {
	s.mu.Lock()
	jobs, err := s.targetsLocked(names)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	var errs []error
	for _, j := range jobs {
		if err := s.spawn(j.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop cancels timers and shuts down workers for the named jobs,
// transitioning them to Idle. A global Stop (no names) also flips the
// running flag off, closes the root watcher, and blocks until every
// worker has settled. Stopping a job with no timers and no worker is a
// no-op and emits nothing.
func (s *Scheduler) Stop(ctx context.Context, names ...string) error {
	s.mu.Lock()
	jobs, err := s.targetsLocked(names)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	global := len(names) == 0
	var watcher *discovery.Watcher
	if global {
		s.running = false
		watcher = s.watcher
		s.watcher = nil
	}
	for _, j := range jobs {
		s.bank.CancelJob(j.Name)
		s.states[j.Name] = Idle
	}
	s.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}

	if global {
		return s.sup.StopAll(ctx)
	}
	var errs []error
	for _, j := range jobs {
		if err := s.sup.Stop(ctx, j.Name); err != nil {
			errs = append(errs, fmt.Errorf("stop %q: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

// targetsLocked resolves names to job records; no names means every job
// in registration order. Unknown names fail the whole call.
func (s *Scheduler) targetsLocked(names []string) ([]*registry.Job, error) {
	if len(names) == 0 {
		return s.reg.Jobs(), nil
	}
	out := make([]*registry.Job, 0, len(names))
	for _, n := range names {
		j, ok := s.reg.Get(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", registry.ErrUnknown, n)
		}
		out = append(out, j)
	}
	return out, nil
}

// onWorkerExit is the supervisor's exit hook. It runs after the worker
// handle is deregistered and before the "worker deleted" event fires, so
// registry mutations (removeCompleted) commit first.
func (s *Scheduler) onWorkerExit(name string, err error) {
	s.mu.Lock()
	started := s.runStart[name]
	delete(s.runStart, name)

	j, ok := s.reg.Get(name)
	switch {
	case !ok:
		// Removed while running.
	case j.RemoveCompleted && err == nil:
		_ = s.reg.Remove(name)
		s.bank.CancelJob(name)
		delete(s.states, name)
	case s.armedLocked(name):
		s.states[name] = Scheduled
	case j.Timing.HasStartup() && !j.Timing.Repeats():
		// Exhausted one-shot.
		s.states[name] = Terminated
	case s.states[name] == Running:
		if s.running {
			s.states[name] = Scheduled
		} else {
			s.states[name] = Idle
		}
	}
	store := s.store
	s.mu.Unlock()

	if store != nil && !started.IsZero() {
		entry := storage.RunEntry{
			Job:      name,
			Started:  started,
			Duration: time.Since(started),
			Outcome:  storage.OutcomeOK,
		}
		if err != nil {
			entry.Outcome = storage.OutcomeError
			if errors.Is(err, workers.ErrForceKilled) {
				entry.Outcome = storage.OutcomeKilled
			}
			entry.Error = err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if aerr := store.AppendRun(ctx, entry); aerr != nil && !errors.Is(aerr, storage.ErrDisabled) {
			s.log.Warn("run history append failed", logx.String("job", name), logx.Err(aerr))
		}
		cancel()
	}
}
