// Package registry holds the authoritative subscription state for one
// session.
//
// The registry owns the subscription set exclusively: control ingest
// mutates it, stream workers only read snapshots and membership. Changes
// are published on a buffered channel the session consumes to spawn and
// cancel workers; worker-side staleness of at most one scheduling cycle
// is acceptable.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/feedmux/feedmux/internal/model"
)

// ChangeBufferSize is the capacity of the change event channel.
const ChangeBufferSize = 256

// ChangeType is the kind of subscription transition.
type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
)

// Change is one subscription transition event.
type Change struct {
	Type ChangeType
	Key  model.Key
}

// Stats is a snapshot of registry state.
type Stats struct {
	Active        int
	Paused        bool
	DroppedEvents int64
}

// Registry tracks active subscriptions and the session-global pause flag.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[model.Key]model.Subscription
	paused  bool
	closed  bool
	dropped int64

	changes chan Change
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		subs:    make(map[model.Key]model.Subscription),
		changes: make(chan Change, ChangeBufferSize),
	}
}

// Subscribe registers key. Returns false for a duplicate (no-op, no event).
func (r *Registry) Subscribe(key model.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[key]; exists {
		r.logger.Debug("duplicate subscribe ignored", "key", key.String())
		return false
	}

	r.subs[key] = model.Subscription{Key: key, CreatedAt: time.Now().UTC()}
	r.emit(Change{Type: Added, Key: key})
	return true
}

// Unsubscribe removes key. Returns false when key was not registered.
func (r *Registry) Unsubscribe(key model.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[key]; !exists {
		return false
	}

	delete(r.subs, key)
	r.emit(Change{Type: Removed, Key: key})
	return true
}

// Pause sets the session-global pause flag. Workers stop issuing upstream
// calls but stay registered and cancellable.
func (r *Registry) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	r.logger.Info("streaming paused")
}

// Resume clears the pause flag.
func (r *Registry) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	r.logger.Info("streaming resumed")
}

// Paused reports the session-global pause flag.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// Has reports whether key is currently subscribed.
func (r *Registry) Has(key model.Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[key]
	return ok
}

// IntervalsFor returns the intervals currently subscribed for symbol.
func (r *Registry) IntervalsFor(symbol string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var intervals []string
	for key := range r.subs {
		if key.Symbol == symbol {
			intervals = append(intervals, key.Interval)
		}
	}
	return intervals
}

// Snapshot returns a copy of all current subscriptions.
func (r *Registry) Snapshot() []model.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Changes returns the subscription transition channel.
func (r *Registry) Changes() <-chan Change {
	return r.changes
}

// Close stops event delivery. Mutations after Close still update state
// but emit nothing.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.changes)
}

// Stats returns a snapshot of registry state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Active:        len(r.subs),
		Paused:        r.paused,
		DroppedEvents: r.dropped,
	}
}

// emit publishes a change without blocking. Must be called with mu held.
func (r *Registry) emit(c Change) {
	if r.closed {
		return
	}
	select {
	case r.changes <- c:
	default:
		r.dropped++
		r.logger.Warn("change listener backpressure, dropping event",
			"type", c.Type,
			"key", c.Key.String(),
		)
	}
}
