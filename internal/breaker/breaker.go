// Package breaker implements a per-symbol soft circuit breaker.
//
// The breaker tracks consecutive fetch failures per symbol. Reaching the
// threshold causes exactly one skipped scheduling cycle, after which the
// counter resets and the symbol is retried. This is probation, not a timed
// open state: a persistently failing symbol keeps costing one skip per
// threshold-run of failures rather than being excluded outright.
package breaker

import (
	"log/slog"
	"sync"
)

// DefaultThreshold is the consecutive-failure count that trips a symbol.
const DefaultThreshold = 5

// Stats is a snapshot of breaker activity.
type Stats struct {
	Trips    int64
	Tracked  int
	Failures int64
}

// CircuitBreaker counts consecutive failures per symbol.
type CircuitBreaker struct {
	logger *slog.Logger

	mu        sync.Mutex
	threshold int
	counts    map[string]int
	trips     int64
	failures  int64
}

// New creates a breaker. A threshold below 1 falls back to the default.
func New(threshold int, logger *slog.Logger) *CircuitBreaker {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		logger:    logger,
		threshold: threshold,
		counts:    make(map[string]int),
	}
}

// RecordFailure increments the consecutive-failure count for symbol.
func (b *CircuitBreaker) RecordFailure(symbol string) {
	b.mu.Lock()
	b.counts[symbol]++
	b.failures++
	b.mu.Unlock()
}

// RecordSuccess resets the count for symbol.
func (b *CircuitBreaker) RecordSuccess(symbol string) {
	b.mu.Lock()
	delete(b.counts, symbol)
	b.mu.Unlock()
}

// ShouldSkip reports whether symbol has tripped. A true result consumes
// the trip: the counter resets and the next check returns false.
func (b *CircuitBreaker) ShouldSkip(symbol string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.counts[symbol] < b.threshold {
		return false
	}

	delete(b.counts, symbol)
	b.trips++
	b.logger.Warn("skipping symbol after consecutive failures",
		"symbol", symbol,
		"threshold", b.threshold,
	)
	return true
}

// Stats returns a snapshot of breaker activity.
func (b *CircuitBreaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Trips:    b.trips,
		Tracked:  len(b.counts),
		Failures: b.failures,
	}
}
