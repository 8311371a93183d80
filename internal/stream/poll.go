package stream

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/source"
)

// cadenceFor returns the minimum time between polls for interval.
func (s *Session) cadenceFor(interval string) time.Duration {
	if d, ok := s.cfg.Cadence[interval]; ok && d > 0 {
		return d
	}
	if d := s.cfg.Stream.CycleInterval; d > 0 {
		return d
	}
	return time.Minute
}

// symbolDelay returns a random spread so subscriptions do not poll in
// lockstep.
func (s *Session) symbolDelay() time.Duration {
	lo, hi := s.cfg.Stream.SymbolDelayMin, s.cfg.Stream.SymbolDelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// pollWorker drives one (symbol, interval) subscription against the poll
// backend until its context is cancelled.
func (s *Session) pollWorker(ctx context.Context, key model.Key) {
	defer s.wg.Done()

	logger := s.logger.With("key", key.String())
	logger.Debug("poll worker started")
	defer logger.Debug("poll worker stopped")

	cadence := s.cadenceFor(key.Interval)

	for {
		if ctx.Err() != nil {
			return
		}

		if s.registry.Paused() {
			if !sleep(ctx, s.cfg.Stream.PauseCheckInterval) {
				return
			}
			continue
		}

		if !s.registry.Has(key) {
			return
		}

		if s.breaker.ShouldSkip(key.Symbol) {
			if !sleep(ctx, cadence) {
				return
			}
			continue
		}

		if err := s.limiter.Acquire(ctx); err != nil {
			return
		}

		fctx, cancel := context.WithTimeout(ctx, s.cfg.Stream.FetchTimeout)
		point, ok, err := s.poller.PollLatest(fctx, key.Symbol, key.Interval)
		cancel()

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if errors.Is(err, source.ErrThrottled) {
				s.limiter.OnThrottled()
				logger.Warn("upstream throttled, entering cooldown")
			} else {
				logger.Warn("poll failed", "error", err)
			}
			// Throttles count against the symbol like any other failure.
			s.breaker.RecordFailure(key.Symbol)
			// Failed attempts consume the cadence slot too.
			if !sleep(ctx, cadence) {
				return
			}
			continue
		}

		if ok {
			s.breaker.RecordSuccess(key.Symbol)
			s.emit(key, point, logger)
		} else {
			// An empty result counts as a failure: a symbol that
			// persistently returns nothing should trip the breaker.
			s.breaker.RecordFailure(key.Symbol)
			logger.Debug("no data for pair")
		}

		if !sleep(ctx, cadence+s.symbolDelay()) {
			return
		}
	}
}
