// Package dedup suppresses re-emission of unchanged poll results.
//
// Polling the latest bar returns the same candle over and over until the
// upstream updates it; the filter drops a candidate only when every value
// field and the timestamp exactly match the last point emitted for the
// same subscription key. Push feeds bypass the filter entirely: their
// ticks are real-time by construction.
package dedup

import (
	"sync"

	"github.com/feedmux/feedmux/internal/model"
)

// Stats is a snapshot of filter activity.
type Stats struct {
	Emitted    int64
	Suppressed int64
	Keys       int
}

// ChangeFilter tracks the last emitted point per subscription key.
type ChangeFilter struct {
	mu         sync.Mutex
	last       map[model.Key]model.DataPoint
	emitted    int64
	suppressed int64
}

// New creates an empty filter.
func New() *ChangeFilter {
	return &ChangeFilter{last: make(map[model.Key]model.DataPoint)}
}

// ShouldEmit reports whether candidate differs from the last point emitted
// for key. A true result records candidate as the new last-emitted value.
func (f *ChangeFilter) ShouldEmit(key model.Key, candidate model.DataPoint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.last[key]; ok && prev.SameBar(candidate) {
		f.suppressed++
		return false
	}

	f.last[key] = candidate
	f.emitted++
	return true
}

// Last returns the last emitted point for key, if any.
func (f *ChangeFilter) Last(key model.Key) (model.DataPoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.last[key]
	return p, ok
}

// Forget drops the state for key. Called on unsubscribe so a later
// re-subscribe starts fresh.
func (f *ChangeFilter) Forget(key model.Key) {
	f.mu.Lock()
	delete(f.last, key)
	f.mu.Unlock()
}

// Stats returns a snapshot of filter activity.
func (f *ChangeFilter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Emitted:    f.emitted,
		Suppressed: f.suppressed,
		Keys:       len(f.last),
	}
}
