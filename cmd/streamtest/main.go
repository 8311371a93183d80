// Command streamtest exercises a streaming session against a synthetic
// data source. Useful for eyeballing pacing, dedup and pause behavior
// without touching a real upstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/feedmux/feedmux/internal/config"
	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/mux"
	"github.com/feedmux/feedmux/internal/stream"
)

// synthPoller emits a random walk per symbol.
type synthPoller struct {
	start time.Time
}

func (p *synthPoller) PollLatest(ctx context.Context, symbol, interval string) (model.DataPoint, bool, error) {
	// Seed the walk off the symbol so runs are comparable across symbols.
	var seed float64
	for _, r := range symbol {
		seed += float64(r)
	}
	elapsed := time.Since(p.start).Seconds()
	price := seed + 10*rand.Float64() + elapsed/60

	return model.DataPoint{
		Symbol:    symbol,
		Timestamp: time.Now().Truncate(time.Second).UTC(),
		Open:      price,
		High:      price + rand.Float64(),
		Low:       price - rand.Float64(),
		Close:     price + 0.5 - rand.Float64(),
		Volume:    float64(rand.IntN(10000)),
		Interval:  interval,
		Provider:  "synthetic",
	}, true, nil
}

func (p *synthPoller) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name:      "Synthetic",
		Slug:      "synthetic",
		Version:   "0.0.1",
		DataTypes: []string{"ohlcv"},
		Intervals: []string{"1m", "5m"},
		Realtime:  model.RealtimeCaps{Poll: true},
	}
}

func main() {
	symbols := flag.String("symbols", "AAA,BBB,CCC", "comma separated symbols to stream")
	interval := flag.String("interval", "1m", "bar interval")
	duration := flag.Duration("duration", 30*time.Second, "how long to stream")
	cadence := flag.Duration("cadence", 2*time.Second, "poll cadence per subscription")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg := &config.ProviderConfig{
		Provider: config.ProviderInfo{Name: "Stream Test", Slug: "streamtest", Version: "0.0.1"},
		RateLimit: config.RateLimitConfig{
			MinInterval: 100 * time.Millisecond,
			PerMinute:   600,
			Window:      time.Minute,
			CooldownMin: 5 * time.Second,
			CooldownMax: 10 * time.Second,
			Jitter:      50 * time.Millisecond,
		},
	}
	cfg.ApplyDefaults()
	cfg.Cadence = map[string]time.Duration{*interval: *cadence}
	cfg.Stream.NextTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	session := stream.NewSession(cfg, &synthPoller{start: time.Now()}, stream.WithLogger(logger))

	controls := make(chan model.ControlMessage, 16)
	if err := session.Start(controls); err != nil {
		logger.Error("start failed", "error", err)
		os.Exit(1)
	}

	list := strings.Split(*symbols, ",")
	for _, symbol := range list {
		controls <- model.ControlMessage{
			Action:   model.ActionSubscribe,
			Symbol:   strings.TrimSpace(symbol),
			Interval: *interval,
		}
	}

	// Halfway through, pause for a fifth of the run then resume, so the
	// output shows the gap.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(*duration / 2):
		}
		controls <- model.ControlMessage{Action: model.ActionPause}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*duration / 5):
		}
		controls <- model.ControlMessage{Action: model.ActionResume}
	}()

	received := 0
	for ctx.Err() == nil {
		point, err := session.Next(0)
		if err != nil {
			if err == mux.ErrTimeout {
				continue
			}
			break
		}
		received++
		fmt.Printf("%s  %-6s %-4s O=%.2f H=%.2f L=%.2f C=%.2f V=%.0f\n",
			point.Timestamp.Format(time.TimeOnly),
			point.Symbol, point.Interval,
			point.Open, point.High, point.Low, point.Close, point.Volume,
		)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	session.Stop(stopCtx)

	stats := session.Stats()
	fmt.Printf("\nreceived=%d published=%d dropped=%d suppressed=%d requests=%d\n",
		received,
		stats.Queue.Published,
		stats.Queue.Dropped,
		stats.Filter.Suppressed,
		stats.Limiter.Requests,
	)
}
