package limiter

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Config holds rate limiter settings for one upstream source.
type Config struct {
	MinInterval time.Duration // minimum time between calls
	PerMinute   int           // max calls per rolling window
	Window      time.Duration // budget window (default: 1m)
	CooldownMin time.Duration // lower bound of throttle cooldown
	CooldownMax time.Duration // upper bound of throttle cooldown
	Jitter      time.Duration // max random extra wait added to each delay
}

// DefaultConfig returns conservative limits suitable for unauthenticated
// public endpoints.
func DefaultConfig() Config {
	return Config{
		MinInterval: 5 * time.Second,
		PerMinute:   8,
		Window:      time.Minute,
		CooldownMin: 120 * time.Second,
		CooldownMax: 180 * time.Second,
		Jitter:      3 * time.Second,
	}
}

// Stats is a snapshot of limiter state.
type Stats struct {
	Requests      int64
	Throttles     int64
	WindowCount   int
	CooldownUntil time.Time
}

// RateLimiter gates upstream calls for one source.
type RateLimiter struct {
	cfg    Config
	logger *slog.Logger

	// slot serializes Acquire while staying cancellable; a plain mutex
	// held across the wait would block cancellation of queued callers.
	slot chan struct{}

	mu            sync.Mutex
	lastRequest   time.Time
	windowStart   time.Time
	windowCount   int
	cooldownUntil time.Time
	requests      int64
	throttles     int64
}

// New creates a rate limiter.
func New(cfg Config, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &RateLimiter{
		cfg:    cfg,
		logger: logger,
		slot:   make(chan struct{}, 1),
	}
	l.slot <- struct{}{}
	return l
}

// Acquire blocks until it is safe to issue one upstream call. It returns
// nil only after the full computed delay has elapsed, or ctx.Err() on
// cancellation.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-l.slot:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { l.slot <- struct{}{} }()

	for {
		wait := l.nextWait(time.Now())
		if wait <= 0 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	l.mu.Lock()
	now := time.Now()
	l.rollWindow(now)
	l.windowCount++
	l.lastRequest = now
	l.requests++
	l.mu.Unlock()

	return nil
}

// OnThrottled records an upstream "too many requests" signal and enters
// cooldown for a randomized period.
func (l *RateLimiter) OnThrottled() {
	cooldown := l.cfg.CooldownMin
	if spread := l.cfg.CooldownMax - l.cfg.CooldownMin; spread > 0 {
		cooldown += rand.N(spread)
	}

	l.mu.Lock()
	l.cooldownUntil = time.Now().Add(cooldown)
	l.throttles++
	l.mu.Unlock()

	l.logger.Warn("upstream throttled, entering cooldown", "cooldown", cooldown)
}

// CooldownRemaining returns how long the current cooldown still lasts,
// zero when none is active.
func (l *RateLimiter) CooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := time.Until(l.cooldownUntil); remaining > 0 {
		return remaining
	}
	return 0
}

// Stats returns a snapshot of limiter state.
func (l *RateLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Requests:      l.requests,
		Throttles:     l.throttles,
		WindowCount:   l.windowCount,
		CooldownUntil: l.cooldownUntil,
	}
}

// nextWait computes the delay the caller currently being served must
// observe. A cooldown dominates; otherwise the larger of the min-interval
// wait and the window-budget wait applies, plus jitter.
func (l *RateLimiter) nextWait(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := l.cooldownUntil.Sub(now); remaining > 0 {
		return remaining + l.jitter()
	}

	l.rollWindow(now)

	var wait time.Duration
	if !l.lastRequest.IsZero() {
		if d := l.cfg.MinInterval - now.Sub(l.lastRequest); d > wait {
			wait = d
		}
	}
	if l.cfg.PerMinute > 0 && l.windowCount >= l.cfg.PerMinute {
		if d := l.windowStart.Add(l.cfg.Window).Sub(now); d > wait {
			wait = d
		}
	}

	if wait <= 0 {
		return 0
	}
	return wait + l.jitter()
}

// rollWindow resets the budget window once its age reaches the window
// length. Must be called with mu held.
func (l *RateLimiter) rollWindow(now time.Time) {
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.cfg.Window {
		l.windowStart = now
		l.windowCount = 0
	}
}

// jitter desynchronizes workers sharing the limiter.
func (l *RateLimiter) jitter() time.Duration {
	if l.cfg.Jitter <= 0 {
		return 0
	}
	return rand.N(l.cfg.Jitter)
}
