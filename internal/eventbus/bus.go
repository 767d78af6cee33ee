package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types emitted by the scheduler core.
//
// For a given job, TypeWorkerCreated always precedes any TypeWorkerMessage /
// TypeWorkerError events for that spawn, which always precede the paired
// TypeWorkerDeleted.
const (
	TypeWorkerCreated = "worker created"
	TypeWorkerDeleted = "worker deleted"
	TypeWorkerMessage = "worker message"
	TypeWorkerError   = "worker error"
)

// Event is a lightweight, in-memory signal used to decouple the scheduler
// control plane from observers.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Job carries the owning job name. Data is event-specific: the worker
// message payload for TypeWorkerMessage, the error for TypeWorkerError,
// nil for created/deleted.
type Event struct {
	Type string
	Time time.Time
	Job  string
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	// Subscribers reports the current subscriber count. The scheduler uses
	// it to decide whether a worker error was observed by anyone.
	Subscribers() int
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}

func (b *memBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
