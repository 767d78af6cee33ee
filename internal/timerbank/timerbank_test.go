package timerbank

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmFires(t *testing.T) {
	t.Parallel()
	b := New()
	done := make(chan struct{})

	b.Arm("job", Startup, time.Now().Add(10*time.Millisecond), func() { close(done) })
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	// Fired slot is cleared.
	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Len = %d after fire, want 0", b.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestArmPastInstantFires(t *testing.T) {
	t.Parallel()
	b := New()
	done := make(chan struct{})

	// An instant already in the past still fires, on the next timer turn.
	b.Arm("job", Startup, time.Now().Add(-time.Hour), func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("past-instant timer did not fire")
	}
}

func TestReplaceSupersedes(t *testing.T) {
	t.Parallel()
	b := New()
	var fired atomic.Int32
	done := make(chan struct{})

	b.Arm("job", Repeat, time.Now().Add(20*time.Millisecond), func() {
		fired.Add(100) // superseded callback must never run
	})
	b.Arm("job", Repeat, time.Now().Add(30*time.Millisecond), func() {
		fired.Add(1)
		close(done)
	})
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (replacement, not accumulation)", b.Len())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer did not fire")
	}
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d, want 1", got)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	b := New()
	var fired atomic.Bool

	b.Arm("job", Startup, time.Now().Add(30*time.Millisecond), func() { fired.Store(true) })
	if !b.Cancel("job", Startup) {
		t.Fatal("Cancel should report a live timer")
	}
	if b.Cancel("job", Startup) {
		t.Fatal("second Cancel should be a no-op")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled timer fired")
	}
}

func TestRearmInsideCallback(t *testing.T) {
	t.Parallel()
	b := New()
	hits := make(chan struct{}, 4)

	var fire func()
	fire = func() {
		hits <- struct{}{}
		b.Arm("job", Repeat, time.Now().Add(5*time.Millisecond), fire)
	}
	b.Arm("job", Repeat, time.Now().Add(5*time.Millisecond), fire)

	for i := 0; i < 3; i++ {
		select {
		case <-hits:
		case <-time.After(2 * time.Second):
			t.Fatalf("fire #%d never happened", i+1)
		}
	}
	b.CancelJob("job")
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	b := New()
	b.Arm("a", Startup, time.Now().Add(time.Hour), func() {})
	b.Arm("a", Repeat, time.Now().Add(time.Hour), func() {})
	b.Arm("b", Repeat, time.Now().Add(time.Hour), func() {})
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	b.CancelAll()
	if b.Len() != 0 {
		t.Fatalf("Len = %d after CancelAll, want 0", b.Len())
	}
}

func TestActive(t *testing.T) {
	t.Parallel()
	b := New()
	at := time.Now().Add(time.Hour)
	b.Arm("job", Repeat, at, func() {})

	got, ok := b.Active("job", Repeat)
	if !ok || !got.Equal(at) {
		t.Fatalf("Active = %v/%v, want %v", got, ok, at)
	}
	if _, ok := b.Active("job", Startup); ok {
		t.Fatal("startup slot should be empty")
	}
}
