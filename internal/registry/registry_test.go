package registry

import (
	"testing"

	"github.com/feedmux/feedmux/internal/model"
)

func key(symbol, interval string) model.Key {
	return model.Key{Symbol: symbol, Interval: interval}
}

func TestRegistry_SubscribeIdempotent(t *testing.T) {
	r := New(nil)

	if !r.Subscribe(key("AAA", "1m")) {
		t.Fatal("first subscribe should succeed")
	}
	if r.Subscribe(key("AAA", "1m")) {
		t.Fatal("duplicate subscribe should be a no-op")
	}

	if got := len(r.Snapshot()); got != 1 {
		t.Fatalf("expected 1 subscription, got %d", got)
	}

	// Only the first subscribe should have emitted an event.
	select {
	case c := <-r.Changes():
		if c.Type != Added || c.Key != key("AAA", "1m") {
			t.Fatalf("unexpected change %+v", c)
		}
	default:
		t.Fatal("expected an added event")
	}
	select {
	case c := <-r.Changes():
		t.Fatalf("unexpected extra event %+v", c)
	default:
	}
}

func TestRegistry_UnsubscribeRemoves(t *testing.T) {
	r := New(nil)
	r.Subscribe(key("AAA", "1m"))
	r.Subscribe(key("BBB", "1m"))

	if !r.Unsubscribe(key("BBB", "1m")) {
		t.Fatal("unsubscribe of registered key should succeed")
	}
	if r.Unsubscribe(key("BBB", "1m")) {
		t.Fatal("unsubscribe of absent key should be a no-op")
	}

	if r.Has(key("BBB", "1m")) {
		t.Fatal("BBB|1m should be gone")
	}
	if !r.Has(key("AAA", "1m")) {
		t.Fatal("AAA|1m should remain")
	}
}

func TestRegistry_PauseResume(t *testing.T) {
	r := New(nil)
	r.Subscribe(key("AAA", "1m"))

	r.Pause()
	if !r.Paused() {
		t.Fatal("expected paused")
	}
	// Pause keeps subscriptions registered.
	if !r.Has(key("AAA", "1m")) {
		t.Fatal("pause must not drop subscriptions")
	}

	r.Resume()
	if r.Paused() {
		t.Fatal("expected resumed")
	}
}

func TestRegistry_IntervalsFor(t *testing.T) {
	r := New(nil)
	r.Subscribe(key("AAA", "1m"))
	r.Subscribe(key("AAA", "5m"))
	r.Subscribe(key("BBB", "1m"))

	intervals := r.IntervalsFor("AAA")
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals for AAA, got %v", intervals)
	}
}

func TestRegistry_ChangeOverflowDrops(t *testing.T) {
	r := New(nil)

	// Fill the change buffer with nobody consuming; further events must
	// not block the caller.
	for i := 0; i < ChangeBufferSize+10; i++ {
		r.Subscribe(model.Key{Symbol: string(rune('A' + i%26)), Interval: string(rune('a' + i/26))})
	}

	stats := r.Stats()
	if stats.DroppedEvents == 0 {
		t.Fatal("expected dropped change events under backpressure")
	}
}

func TestRegistry_CloseStopsEvents(t *testing.T) {
	r := New(nil)
	r.Close()
	r.Close() // idempotent

	// Mutations after close still update state but emit nothing.
	r.Subscribe(key("AAA", "1m"))
	if !r.Has(key("AAA", "1m")) {
		t.Fatal("subscribe after close should still register")
	}
	if _, ok := <-r.Changes(); ok {
		t.Fatal("changes channel should be closed and empty")
	}
}
