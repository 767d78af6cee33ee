package scheduler

import (
	"context"
	"time"

	"warden/internal/config"
	"warden/internal/eventbus"
	"warden/internal/storage"
	"warden/internal/timerbank"
	"warden/internal/workers"
)

// JobInfo is a read-only view of one registered job.
type JobInfo struct {
	Name   string
	Path   string
	Timing string
	State  State
	// Next is the earliest armed fire instant, zero when no timer is
	// live.
	Next time.Time
}

// Config returns the normalized options the scheduler was built with.
// The Jobs field tracks the live registry: entries removed (explicitly
// or via removeCompleted) no longer appear. Jobs added at runtime are
// visible through Jobs, which also carries their state.
func (s *Scheduler) Config() config.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := s.opts
	if len(opts.Jobs) > 0 {
		kept := make([]config.JobEntry, 0, len(opts.Jobs))
		for _, e := range opts.Jobs {
			if s.reg.Has(e.Name) {
				kept = append(kept, e)
			}
		}
		opts.Jobs = kept
	}
	return opts
}

// Jobs snapshots every registered job in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.reg.Jobs()
	out := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		info := JobInfo{
			Name:   j.Name,
			Path:   j.Path,
			Timing: j.Timing.String(),
			State:  s.states[j.Name],
		}
		if at, ok := s.bank.Active(j.Name, timerbank.Startup); ok {
			info.Next = at
		}
		if at, ok := s.bank.Active(j.Name, timerbank.Repeat); ok {
			if info.Next.IsZero() || at.Before(info.Next) {
				info.Next = at
			}
		}
		out = append(out, info)
	}
	return out
}

// State reports the lifecycle state of one job. Unknown names read as
// Idle, same as a registered-but-never-started job.
func (s *Scheduler) State(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[name]
}

// Has reports whether a job with the given name is registered.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Has(name)
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len()
}

// Workers snapshots the active workers keyed by job name.
func (s *Scheduler) Workers() map[string]workers.HandleInfo {
	return s.sup.Handles()
}

// HasWorker reports whether the named job has an active worker.
func (s *Scheduler) HasWorker(name string) bool {
	return s.sup.Has(name)
}

// Subscribe attaches a listener to the scheduler's event stream. The
// returned channel carries lifecycle, message and error events; call the
// unsubscribe func when done.
func (s *Scheduler) Subscribe(buffer int) (<-chan eventbus.Event, func()) {
	return s.bus.Subscribe(buffer)
}

// RecentRuns reads the persisted run history for one job, most recent
// first. An empty job name means all jobs. Returns storage.ErrDisabled
// when no history store is configured.
func (s *Scheduler) RecentRuns(ctx context.Context, job string, limit int) ([]storage.RunEntry, error) {
	s.mu.Lock()
	st := s.store
	s.mu.Unlock()
	if st == nil {
		return nil, storage.ErrDisabled
	}
	return st.RecentRuns(ctx, job, limit)
}
