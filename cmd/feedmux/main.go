// Command feedmux streams market data for subscriptions controlled over
// stdin. Control messages arrive as one JSON object per line; data
// points leave as one JSON object per line on stdout. Logs go to stderr
// so the data stream stays clean.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedmux/feedmux/internal/catalog"
	"github.com/feedmux/feedmux/internal/config"
	"github.com/feedmux/feedmux/internal/database"
	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/mux"
	"github.com/feedmux/feedmux/internal/source/wsfeed"
	"github.com/feedmux/feedmux/internal/source/yahoo"
	"github.com/feedmux/feedmux/internal/stream"
	"github.com/feedmux/feedmux/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedmux.local.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedmux",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Instrument directory, optionally backed by PostgreSQL.
	directory := catalog.NewDirectory(cfg.Catalog, logger)
	if cfg.Catalog.Database.Enabled() {
		logger.Info("connecting to catalog database",
			"host", cfg.Catalog.Database.Host,
			"database", cfg.Catalog.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Catalog.Database)
		if err != nil {
			logger.Error("failed to connect to catalog database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := catalog.NewStore(pool, logger)
		if err := store.Ensure(ctx); err != nil {
			logger.Error("failed to prepare catalog schema", "error", err)
			os.Exit(1)
		}
		stored, err := store.LoadAll(ctx)
		if err != nil {
			logger.Error("failed to load catalog", "error", err)
			os.Exit(1)
		}
		for _, inst := range stored {
			directory.Add(inst)
		}
		// Persist config-seeded instruments so edits survive restarts.
		if err := store.UpsertAll(ctx, directory.All()); err != nil {
			logger.Error("failed to persist catalog", "error", err)
			os.Exit(1)
		}
		logger.Info("catalog loaded", "instruments", directory.Len())
	}

	poller, err := buildPoller(cfg, logger)
	if err != nil {
		logger.Error("failed to build data source", "error", err)
		os.Exit(1)
	}

	opts := []stream.Option{
		stream.WithLogger(logger),
		stream.WithDirectory(directory),
	}
	if cfg.Source.FeedURL != "" {
		opener := wsfeed.NewOpener(cfg.Source.FeedURL,
			wsfeed.WithLogger(logger),
			wsfeed.WithPingTimeout(cfg.Source.PingTimeout),
		)
		opts = append(opts, stream.WithPushOpener(opener))
	}

	session := stream.NewSession(cfg, poller, opts...)

	controls := make(chan model.ControlMessage, 64)
	go readControls(ctx, controls, logger)

	if err := session.Start(controls); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	healthServer := startHealthServer(cfg, session, logger)

	logger.Info("feedmux running",
		"session_id", session.ID(),
		"provider", session.Capabilities().Slug,
	)

	// Pump data points to stdout until shutdown.
	encoder := json.NewEncoder(os.Stdout)
	for ctx.Err() == nil {
		point, err := session.Next(cfg.Stream.NextTimeout)
		if err != nil {
			if errors.Is(err, mux.ErrTimeout) {
				continue
			}
			break
		}
		if err := encoder.Encode(point); err != nil {
			logger.Error("failed to write point", "error", err)
			break
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := session.Stop(shutdownCtx); err != nil {
		logger.Warn("session stop", "error", err)
	}
	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("feedmux stopped")
}

// buildPoller selects the poll backend from config.
func buildPoller(cfg *config.ProviderConfig, logger *slog.Logger) (*yahoo.Client, error) {
	switch cfg.Source.Kind {
	case "yahoo", "":
		opts := []yahoo.ClientOption{yahoo.WithLogger(logger)}
		if cfg.Source.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(cfg.Source.BaseURL))
		}
		if cfg.Source.Timeout > 0 {
			opts = append(opts, yahoo.WithTimeout(cfg.Source.Timeout))
		}
		return yahoo.NewClient(opts...), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// readControls decodes one JSON control message per stdin line. A bad
// line is logged and skipped; stdin EOF closes the control channel.
func readControls(ctx context.Context, controls chan<- model.ControlMessage, logger *slog.Logger) {
	defer close(controls)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg model.ControlMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn("malformed control line, dropping", "error", err)
			continue
		}
		action, err := model.ParseAction(string(msg.Action))
		if err != nil {
			logger.Warn("malformed control line, dropping", "error", err)
			continue
		}
		msg.Action = action

		select {
		case controls <- msg:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("control input error", "error", err)
	}
	logger.Info("control input closed")
}

// startHealthServer exposes session stats on the configured port.
func startHealthServer(cfg *config.ProviderConfig, session *stream.Session, logger *slog.Logger) *http.Server {
	if cfg.Health.Port <= 0 {
		return nil
	}

	path := cfg.Health.Path
	if path == "" {
		path = "/health"
	}

	handler := http.NewServeMux()
	handler.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		stats := session.Stats()

		health := struct {
			Status       string             `json:"status"`
			SessionID    string             `json:"session_id"`
			Capabilities model.Capabilities `json:"capabilities"`
			Stats        stream.Stats       `json:"stats"`
		}{
			Status:       "healthy",
			SessionID:    session.ID(),
			Capabilities: session.Capabilities(),
			Stats:        stats,
		}
		if stats.Limiter.CooldownUntil.After(time.Now()) {
			health.Status = "cooling_down"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: handler,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	return server
}
