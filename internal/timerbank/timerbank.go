// Package timerbank owns the live timer handles of the scheduler.
//
// Each job has at most one startup timer (the one-shot delay before the
// first run) and one repeat timer (the next fire of a repeating schedule)
// at any instant. Arming a kind that is already armed replaces the old
// timer; cancellation is idempotent and a no-op for absent timers.
package timerbank

import (
	"sync"
	"time"
)

// Kind distinguishes the two timer slots a job may occupy.
type Kind int

const (
	Startup Kind = iota
	Repeat
)

func (k Kind) String() string {
	if k == Startup {
		return "startup"
	}
	return "repeat"
}

type entry struct {
	timer *time.Timer
	at    time.Time
	ver   uint64
}

// Bank arms, re-arms, and cancels per-job timers. Safe for concurrent use.
type Bank struct {
	mu     sync.Mutex
	timers map[string]map[Kind]*entry
	ver    uint64
}

func New() *Bank {
	return &Bank{timers: map[string]map[Kind]*entry{}}
}

// Arm schedules fire to run at the given instant, replacing any existing
// timer of the same kind for the job. An instant at or before now fires on
// the next timer turn (a zero delay means "immediately", never "never").
//
// The fired slot is cleared before fire runs, so re-arming from inside the
// callback is safe and race-free.
func (b *Bank) Arm(job string, kind Kind, at time.Time, fire func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelLocked(job, kind)

	b.ver++
	ver := b.ver
	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	slots := b.timers[job]
	if slots == nil {
		slots = map[Kind]*entry{}
		b.timers[job] = slots
	}
	e := &entry{at: at, ver: ver}
	e.timer = time.AfterFunc(d, func() {
		// A cancelled timer can still fire if the AfterFunc was already
		// in flight; the version check discards such stale fires.
		b.mu.Lock()
		cur := b.timers[job][kind]
		if cur == nil || cur.ver != ver {
			b.mu.Unlock()
			return
		}
		delete(b.timers[job], kind)
		if len(b.timers[job]) == 0 {
			delete(b.timers, job)
		}
		b.mu.Unlock()
		fire()
	})
	slots[kind] = e
}

// Cancel stops the job's timer of the given kind. Reports whether a live
// timer was cancelled; cancelling an absent timer is a no-op.
func (b *Bank) Cancel(job string, kind Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelLocked(job, kind)
}

// CancelJob stops both of the job's timers.
func (b *Bank) CancelJob(job string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked(job, Startup)
	b.cancelLocked(job, Repeat)
}

// CancelAll stops every live timer.
func (b *Bank) CancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for job, slots := range b.timers {
		for kind := range slots {
			b.cancelLocked(job, kind)
		}
	}
}

func (b *Bank) cancelLocked(job string, kind Kind) bool {
	slots := b.timers[job]
	e := slots[kind]
	if e == nil {
		return false
	}
	e.timer.Stop()
	delete(slots, kind)
	if len(slots) == 0 {
		delete(b.timers, job)
	}
	return true
}

// Active reports the scheduled fire instant of the job's timer, if armed.
func (b *Bank) Active(job string, kind Kind) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.timers[job][kind]
	if e == nil {
		return time.Time{}, false
	}
	return e.at, true
}

// Len reports the number of live timers across all jobs.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, slots := range b.timers {
		n += len(slots)
	}
	return n
}
