package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/eventbus"
	logx "warden/pkg/logx"
)

var (
	// ErrWorkerActive is returned by Spawn when the job already has a
	// live worker (at-most-one-concurrent-instance invariant).
	ErrWorkerActive = errors.New("worker already active")
	// ErrForceKilled marks a worker that exceeded its graceful-shutdown
	// bound and was forcibly terminated.
	ErrForceKilled = errors.New("worker force-killed")
)

// ExitFunc runs when a worker exits, after the handle is deregistered and
// before the "worker deleted" event is published. The scheduler uses it
// for re-arming and removeCompleted, so registry mutations commit before
// the event announcing them is observable.
type ExitFunc func(job string, err error)

// HandleInfo is the externally visible view of an active worker.
type HandleInfo struct {
	Job     string
	Started time.Time
}

type handle struct {
	job        string
	started    time.Time
	proc       Proc
	closeAfter time.Duration

	stopOnce   sync.Once
	settleOnce sync.Once
	settled    chan struct{}
	killTimer  *time.Timer // guarded by Supervisor.mu
}

// Supervisor owns all live worker handles, keyed by job name, at most one
// per name. It relays worker signals into the event bus and enforces
// bounded graceful shutdown.
type Supervisor struct {
	mu       sync.Mutex
	runner   Runner
	bus      eventbus.Bus
	log      logx.Logger
	onExit   ExitFunc
	escalate func(job string, err error)
	active   map[string]*handle
}

func NewSupervisor(runner Runner, bus eventbus.Bus, log logx.Logger) *Supervisor {
	return &Supervisor{
		runner: runner,
		bus:    bus,
		log:    log,
		active: map[string]*handle{},
	}
}

// SetExitHook installs the exit hook. Must be set before the first Spawn.
func (s *Supervisor) SetExitHook(fn ExitFunc) {
	s.mu.Lock()
	s.onExit = fn
	s.mu.Unlock()
}

// SetEscalation installs the sink for worker errors no subscriber
// observed. Must be set before the first Spawn.
func (s *Supervisor) SetEscalation(fn func(job string, err error)) {
	s.mu.Lock()
	s.escalate = fn
	s.mu.Unlock()
}

// Spawn launches a worker for the job. It fails with ErrWorkerActive if
// one is already live. The handle is registered before the
// "worker created" event fires, so an observer reacting to the event
// already sees Has(job) == true.
func (s *Supervisor) Spawn(spec Spec, closeAfter time.Duration) error {
	rl := &relay{s: s, job: spec.Job, ready: make(chan struct{})}

	s.mu.Lock()
	if s.active[spec.Job] != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrWorkerActive, spec.Job)
	}
	proc, err := s.runner.Start(spec, rl)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	h := &handle{
		job:        spec.Job,
		started:    time.Now(),
		proc:       proc,
		closeAfter: closeAfter,
		settled:    make(chan struct{}),
	}
	s.active[spec.Job] = h
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{Type: eventbus.TypeWorkerCreated, Job: spec.Job})
	// Signals were gated until now so no message can precede the created event.
	close(rl.ready)
	s.log.Debug("worker created", logx.String("job", spec.Job))

	go func() {
		<-proc.Done()
		s.settle(h, proc.Err())
	}()
	return nil
}

// Stop requests graceful shutdown of the job's worker and waits for
// settlement. With a configured closeAfter bound, the worker is forcibly
// terminated when the bound elapses; without one, Stop waits for natural
// exit (or ctx). Stopping a job with no active worker is a no-op.
func (s *Supervisor) Stop(ctx context.Context, job string) error {
	s.mu.Lock()
	h := s.active[job]
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	s.initiateStop(h)
	select {
	case <-h.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll signals every active worker, then waits for all of them to
// settle (bounded by ctx).
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	hs := make([]*handle, 0, len(s.active))
	for _, h := range s.active {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		s.initiateStop(h)
	}
	for _, h := range hs {
		select {
		case <-h.settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Supervisor) initiateStop(h *handle) {
	h.stopOnce.Do(func() {
		if err := h.proc.Terminate(); err != nil {
			s.log.Warn("worker terminate signal failed", logx.String("job", h.job), logx.Err(err))
		}
		if h.closeAfter > 0 {
			s.mu.Lock()
			h.killTimer = time.AfterFunc(h.closeAfter, func() {
				_ = h.proc.Kill()
				// A worker that ignores cancellation would otherwise hang
				// shutdown; after a force kill the handle is abandoned.
				s.settle(h, fmt.Errorf("%w: job %q exceeded %v graceful shutdown", ErrForceKilled, h.job, h.closeAfter))
			})
			s.mu.Unlock()
		}
	})
}

// settle runs the exit path exactly once per handle: forward a failure,
// deregister, run the exit hook, then announce deletion.
func (s *Supervisor) settle(h *handle, err error) {
	h.settleOnce.Do(func() {
		s.mu.Lock()
		if h.killTimer != nil {
			h.killTimer.Stop()
		}
		delete(s.active, h.job)
		hook := s.onExit
		s.mu.Unlock()

		if err != nil {
			s.forwardError(h.job, err)
		}
		// Deregistration and registry side effects happen-before the
		// deleted event, mirroring Spawn.
		if hook != nil {
			hook(h.job, err)
		}
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeWorkerDeleted, Job: h.job})
		close(h.settled)

		if err != nil {
			s.log.Warn("worker exited", logx.String("job", h.job), logx.Duration("ran", time.Since(h.started)), logx.Err(err))
		} else {
			s.log.Debug("worker exited", logx.String("job", h.job), logx.Duration("ran", time.Since(h.started)))
		}
	})
}

func (s *Supervisor) forwardError(job string, err error) {
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeWorkerError, Job: job, Data: err})
	// An error nobody subscribed to must not vanish silently.
	if s.bus.Subscribers() == 0 {
		s.mu.Lock()
		esc := s.escalate
		s.mu.Unlock()
		if esc != nil {
			esc(job, err)
		} else {
			s.log.Error("unhandled worker error", logx.String("job", job), logx.Err(err))
		}
	}
}

// Has reports whether the job currently has a live worker.
func (s *Supervisor) Has(job string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[job] != nil
}

// Len reports the number of live workers.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Handles returns the active workers keyed by job name.
func (s *Supervisor) Handles() map[string]HandleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]HandleInfo, len(s.active))
	for name, h := range s.active {
		out[name] = HandleInfo{Job: name, Started: h.started}
	}
	return out
}

// relay gates a worker's signal delivery until the created event has been
// published, so no message or error can be observed before it.
type relay struct {
	s     *Supervisor
	job   string
	ready chan struct{}
}

func (r *relay) Message(data any) {
	<-r.ready
	r.s.bus.Publish(eventbus.Event{Type: eventbus.TypeWorkerMessage, Job: r.job, Data: data})
}

func (r *relay) Error(err error) {
	<-r.ready
	r.s.forwardError(r.job, err)
}
