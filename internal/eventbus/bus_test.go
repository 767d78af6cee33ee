package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeWorkerCreated, Job: "backup"})

	select {
	case e := <-ch:
		if e.Type != TypeWorkerCreated || e.Job != "backup" {
			t.Fatalf("unexpected event: %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatal("publish should stamp a time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscriberCount(t *testing.T) {
	t.Parallel()
	b := New()
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d, want 0", b.Subscribers())
	}
	_, unsub1 := b.Subscribe(1)
	_, unsub2 := b.Subscribe(1)
	if b.Subscribers() != 2 {
		t.Fatalf("Subscribers = %d, want 2", b.Subscribers())
	}
	unsub1()
	unsub1() // idempotent
	unsub2()
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d after unsubscribe, want 0", b.Subscribers())
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	// Fill the buffer, then keep publishing; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeWorkerMessage, Job: "spam"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	// The buffered event is still readable.
	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered event")
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	// Must not panic.
	b.Publish(Event{Type: TypeWorkerDeleted, Job: "gone"})
}
