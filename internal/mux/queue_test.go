package mux

import (
	"errors"
	"testing"
	"time"
)

func TestQueue_PublishNext(t *testing.T) {
	q := New[int](10, nil)

	for i := 0; i < 5; i++ {
		if !q.Publish(i) {
			t.Fatalf("Publish(%d) = false", i)
		}
	}

	for i := 0; i < 5; i++ {
		got, err := q.Next(time.Second)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != i {
			t.Errorf("Next = %d, want %d", got, i)
		}
	}

	stats := q.Stats()
	if stats.Published != 5 || stats.Delivered != 5 || stats.Dropped != 0 {
		t.Errorf("stats = %+v, want 5 published / 5 delivered / 0 dropped", stats)
	}
}

func TestQueue_ShedsWhenFull(t *testing.T) {
	q := New[int](3, nil)

	// Fast producer, no consumer: overflow must drop without blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			q.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	stats := q.Stats()
	if stats.Published != 3 {
		t.Errorf("Published = %d, want 3", stats.Published)
	}
	if stats.Dropped != 7 {
		t.Errorf("Dropped = %d, want 7", stats.Dropped)
	}

	// The retained items are the oldest three.
	for i := 0; i < 3; i++ {
		got, err := q.Next(time.Second)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != i {
			t.Errorf("Next = %d, want %d", got, i)
		}
	}
}

func TestQueue_NextTimeout(t *testing.T) {
	q := New[int](1, nil)

	start := time.Now()
	_, err := q.Next(30 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Next on empty queue = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Next returned after %v, want ~30ms wait", elapsed)
	}
}

func TestQueue_CloseDiscardsAndTerminates(t *testing.T) {
	q := New[int](10, nil)
	q.Publish(1)
	q.Publish(2)

	q.Close()

	if _, err := q.Next(100 * time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after Close = %v, want ErrClosed", err)
	}
	if q.Publish(3) {
		t.Error("Publish after Close = true, want false")
	}

	// Idempotent.
	q.Close()
}

func TestQueue_CloseWakesBlockedConsumer(t *testing.T) {
	q := New[int](1, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Next(5 * time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked consumer not woken by Close")
	}
}
