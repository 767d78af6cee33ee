// Package workers spawns and supervises job workers.
//
// A worker is an isolated execution context that communicates with the
// control plane only through message passing: application messages, error
// signals, and an exit notification. The isolation mechanism is an
// injected Runner strategy; the supervisor only ever holds the capability
// surface (terminate, kill, done).
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Spec describes the worker to launch.
type Spec struct {
	// Job is the owning job name.
	Job string
	// Path locates the worker's code (job file). May be empty for
	// in-process workers registered by name.
	Path string
	// Data is the opaque workerData payload, forwarded verbatim.
	Data json.RawMessage
}

// Emitter receives a worker's in-flight signals. Implementations are
// provided by the supervisor; workers never see the event bus directly.
type Emitter interface {
	Message(data any)
	Error(err error)
}

// Proc is a live worker execution context.
type Proc interface {
	// Terminate requests graceful shutdown (context cancel or SIGTERM).
	Terminate() error
	// Kill forces termination. After Kill there is no further cancellation.
	Kill() error
	// Done is closed when the worker exits.
	Done() <-chan struct{}
	// Err reports the exit outcome; valid only after Done is closed.
	Err() error
}

// Runner launches workers. Implementations must deliver signals through
// the emitter and must eventually close the Proc's Done channel. The one
// exception is Kill, after which the supervisor abandons the handle.
type Runner interface {
	Start(spec Spec, emit Emitter) (Proc, error)
}

// ---- in-process runner ----

// Env is what an in-process job function gets to work with.
type Env struct {
	Job  string
	Data json.RawMessage
	// Send forwards an application message to observers.
	Send func(data any)
}

// JobFunc is an in-process worker body. It must honor ctx cancellation;
// a function that ignores it can only be abandoned, not force-killed.
type JobFunc func(ctx context.Context, env Env) error

// FuncRunner executes jobs as goroutines with panic capture. Job names
// map to registered functions.
type FuncRunner struct {
	mu    sync.RWMutex
	funcs map[string]JobFunc
}

func NewFuncRunner() *FuncRunner {
	return &FuncRunner{funcs: map[string]JobFunc{}}
}

// Register installs fn as the body for the named job. Re-registering
// replaces the previous body.
func (r *FuncRunner) Register(name string, fn JobFunc) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *FuncRunner) Start(spec Spec, emit Emitter) (Proc, error) {
	r.mu.RLock()
	fn := r.funcs[spec.Job]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("no function registered for job %q", spec.Job)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &funcProc{cancel: cancel, done: make(chan struct{})}
	env := Env{Job: spec.Job, Data: spec.Data, Send: emit.Message}

	go func() {
		defer close(p.done)
		defer func() {
			if rec := recover(); rec != nil {
				p.err = fmt.Errorf("panic in job %q: %v\n%s", spec.Job, rec, debug.Stack())
			}
		}()
		err := fn(ctx, env)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.err = err
		}
	}()
	return p, nil
}

type funcProc struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *funcProc) Terminate() error { p.cancel(); return nil }

// Kill cancels the context; a goroutine cannot be forcibly stopped, so the
// supervisor abandons the handle after this.
func (p *funcProc) Kill() error { p.cancel(); return nil }

func (p *funcProc) Done() <-chan struct{} { return p.done }
func (p *funcProc) Err() error            { return p.err }
