package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/source"
)

// pushWorker keeps one live feed open for symbol, reconnecting with
// exponential backoff, until its context is cancelled.
func (s *Session) pushWorker(ctx context.Context, symbol string) {
	defer s.wg.Done()

	logger := s.logger.With("symbol", symbol)
	logger.Debug("push worker started")
	defer logger.Debug("push worker stopped")

	base := s.cfg.Stream.ReconnectBaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := s.cfg.Stream.ReconnectMaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	backoff := base

	for {
		if ctx.Err() != nil {
			return
		}

		if s.breaker.ShouldSkip(symbol) {
			if !sleep(ctx, backoff) {
				return
			}
			continue
		}

		feed, err := s.pusher.OpenFeed(ctx, symbol)
		if err != nil {
			s.breaker.RecordFailure(symbol)
			logger.Warn("feed open failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxDelay)
			continue
		}

		s.breaker.RecordSuccess(symbol)
		backoff = base

		s.consumeFeed(ctx, feed, symbol, logger)
		feed.Close()

		if !sleep(ctx, backoff) {
			return
		}
	}
}

// consumeFeed fans ticks out to every interval subscribed for symbol.
// Returns when the feed dies or ctx is cancelled.
func (s *Session) consumeFeed(ctx context.Context, feed source.Feed, symbol string, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-feed.Errors():
			logger.Warn("feed error, reconnecting", "error", err)
			return
		case tick, ok := <-feed.Ticks():
			if !ok {
				logger.Warn("feed closed, reconnecting")
				return
			}
			if s.registry.Paused() {
				continue
			}
			s.fanOut(symbol, tick, logger)
		}
	}
}

// fanOut publishes one tick once per subscribed interval. Push delivery
// bypasses the change filter; every tick is a fresh observation.
func (s *Session) fanOut(symbol string, tick model.DataPoint, logger *slog.Logger) {
	intervals := s.registry.IntervalsFor(symbol)
	if len(intervals) == 0 {
		return
	}

	if err := tick.Validate(); err != nil {
		logger.Warn("invalid tick discarded", "error", err)
		s.mu.Lock()
		s.invalid++
		s.mu.Unlock()
		return
	}

	for _, interval := range intervals {
		point := tick
		point.Interval = interval
		s.queue.Publish(point)
	}
}
