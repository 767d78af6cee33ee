// Package registry holds the validated, ordered collection of job records.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/schedule"
)

var (
	// ErrDuplicate is returned by Add when the name is already registered.
	ErrDuplicate = errors.New("job name already registered")
	// ErrUnknown is returned when no job with the given name exists.
	ErrUnknown = errors.New("unknown job")
)

// Job is one registered unit of schedulable work. The timing descriptor is
// immutable after validation; a job needing a new schedule must be removed
// and re-added.
type Job struct {
	Name string
	// Path locates the worker's code. Empty for purely declarative jobs
	// executed by an in-process runner.
	Path   string
	Timing schedule.Descriptor

	// WorkerData is an opaque payload handed to the worker verbatim.
	WorkerData json.RawMessage

	// CloseWorkerAfter bounds graceful shutdown; 0 waits indefinitely.
	CloseWorkerAfter time.Duration

	RunImmediately  bool
	RemoveCompleted bool
}

// Registry is the ordered job collection. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*Job
}

func New() *Registry {
	return &Registry{byName: map[string]*Job{}}
}

func (r *Registry) Add(j *Job) error {
	if j == nil || j.Name == "" {
		return errors.New("job must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[j.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, j.Name)
	}
	r.byName[j.Name] = j
	r.order = append(r.order, j.Name)
	return nil
}

// Remove detaches a job record. It does not stop an active worker; that is
// the scheduler's responsibility.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Get(name string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.byName[name]
	return j, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns job names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Jobs returns the records in registration order.
func (r *Registry) Jobs() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}
