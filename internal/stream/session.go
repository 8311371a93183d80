// Package stream is the session engine: it owns the subscription
// registry, the shared rate limiter, the per-symbol breaker, the change
// filter and the output queue, and runs one worker per live
// subscription.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedmux/feedmux/internal/breaker"
	"github.com/feedmux/feedmux/internal/catalog"
	"github.com/feedmux/feedmux/internal/config"
	"github.com/feedmux/feedmux/internal/dedup"
	"github.com/feedmux/feedmux/internal/limiter"
	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/mux"
	"github.com/feedmux/feedmux/internal/registry"
	"github.com/feedmux/feedmux/internal/source"
)

var (
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("stream: session already started")

	// ErrNotStarted is returned by Next and Stop before Start.
	ErrNotStarted = errors.New("stream: session not started")
)

// IngestStats counts control message handling outcomes.
type IngestStats struct {
	Processed int64
	Malformed int64
	Rejected  int64
}

// Stats is a point-in-time snapshot of session state.
type Stats struct {
	ID            string
	Subscriptions registry.Stats
	Queue         mux.Stats
	Limiter       limiter.Stats
	Breaker       breaker.Stats
	Filter        dedup.Stats
	Ingest        IngestStats
	InvalidPoints int64
	StalePoints   int64
}

// Session streams data for one consumer.
type Session struct {
	id     string
	cfg    *config.ProviderConfig
	logger *slog.Logger

	poller source.Poller
	pusher source.PushOpener
	dir    *catalog.Directory

	registry *registry.Registry
	limiter  *limiter.RateLimiter
	breaker  *breaker.CircuitBreaker
	filter   *dedup.ChangeFilter
	queue    *mux.Queue[model.DataPoint]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	started     bool
	stopped     bool
	pollWorkers map[model.Key]context.CancelFunc
	pushWorkers map[string]context.CancelFunc
	ingest      IngestStats
	invalid     int64
	stale       int64
}

// Option configures a Session.
type Option func(*Session)

// WithPushOpener enables push delivery for push-capable symbols.
func WithPushOpener(opener source.PushOpener) Option {
	return func(s *Session) {
		s.pusher = opener
	}
}

// WithDirectory enables catalog validation of subscribe requests.
func WithDirectory(dir *catalog.Directory) Option {
	return func(s *Session) {
		s.dir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession builds a session around poller using cfg for all tuning.
func NewSession(cfg *config.ProviderConfig, poller source.Poller, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		cfg:         cfg,
		logger:      slog.Default(),
		poller:      poller,
		pollWorkers: make(map[model.Key]context.CancelFunc),
		pushWorkers: make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("session_id", s.id)

	s.registry = registry.New(s.logger)
	s.limiter = limiter.New(limiter.Config{
		MinInterval: cfg.RateLimit.MinInterval,
		PerMinute:   cfg.RateLimit.PerMinute,
		Window:      cfg.RateLimit.Window,
		CooldownMin: cfg.RateLimit.CooldownMin,
		CooldownMax: cfg.RateLimit.CooldownMax,
		Jitter:      cfg.RateLimit.Jitter,
	}, s.logger)
	s.breaker = breaker.New(cfg.Breaker.Threshold, s.logger)
	s.filter = dedup.New()
	s.queue = mux.New[model.DataPoint](cfg.Stream.QueueSize, s.logger)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Capabilities merges the poll backend's capabilities with the session's
// push configuration.
func (s *Session) Capabilities() model.Capabilities {
	caps := s.poller.Capabilities()
	if s.cfg.Provider.Name != "" {
		caps.Name = s.cfg.Provider.Name
	}
	if s.cfg.Provider.Slug != "" {
		caps.Slug = s.cfg.Provider.Slug
	}
	if s.cfg.Provider.Version != "" {
		caps.Version = s.cfg.Provider.Version
	}
	if s.pusher != nil {
		caps.SupportsRealtime = true
		caps.Realtime.Push = true
		caps.Realtime.PushSymbols = s.cfg.Source.PushSymbols
	}
	return caps
}

// Start begins consuming controls and streaming data. The controls
// channel may be closed by the caller; the session keeps streaming its
// current subscriptions until Stop.
func (s *Session) Start(controls <-chan model.ControlMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(2)
	go s.ingestLoop(controls)
	go s.changeLoop()

	s.logger.Info("session started", "provider", s.Capabilities().Slug)
	return nil
}

// Next blocks until a data point is available or timeout elapses.
// Returns mux.ErrTimeout on timeout and mux.ErrClosed after Stop.
func (s *Session) Next(timeout time.Duration) (model.DataPoint, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return model.DataPoint{}, ErrNotStarted
	}
	if timeout <= 0 {
		timeout = s.cfg.Stream.NextTimeout
	}
	return s.queue.Next(timeout)
}

// Stop cancels all workers and closes the queue. It waits for workers up
// to the configured grace period or until ctx is done.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("stopping session")
	s.cancel()
	s.registry.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.cfg.Stream.StopGracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-timer.C:
		err = fmt.Errorf("stream: workers did not stop within %v", grace)
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.queue.Close()
	s.logger.Info("session stopped")
	return err
}

// Stats returns a snapshot of all component counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	ingest := s.ingest
	invalid := s.invalid
	stale := s.stale
	s.mu.Unlock()

	return Stats{
		ID:            s.id,
		Subscriptions: s.registry.Stats(),
		Queue:         s.queue.Stats(),
		Limiter:       s.limiter.Stats(),
		Breaker:       s.breaker.Stats(),
		Filter:        s.filter.Stats(),
		Ingest:        ingest,
		InvalidPoints: invalid,
		StalePoints:   stale,
	}
}

// ingestLoop applies control messages to the registry. Malformed input
// is counted and dropped; it never stops the session.
func (s *Session) ingestLoop(controls <-chan model.ControlMessage) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-controls:
			if !ok {
				s.logger.Debug("control channel closed")
				return
			}
			s.handleControl(msg)
		}
	}
}

func (s *Session) handleControl(msg model.ControlMessage) {
	switch msg.Action {
	case model.ActionPause:
		s.registry.Pause()
	case model.ActionResume:
		s.registry.Resume()
	case model.ActionSubscribe:
		// Dropped subscribes are counted inside, never as processed.
		if !s.handleSubscribe(msg) {
			return
		}
	case model.ActionUnsubscribe:
		key := msg.Key()
		if s.registry.Unsubscribe(key) {
			s.filter.Forget(key)
		}
	default:
		s.logger.Warn("unknown control action, dropping", "action", msg.Action)
		s.countMalformed()
		return
	}
	s.countProcessed()
}

// handleSubscribe validates and applies one subscribe request. Returns
// false when the request was dropped.
func (s *Session) handleSubscribe(msg model.ControlMessage) bool {
	if msg.Symbol == "" {
		s.logger.Warn("subscribe dropped, missing symbol")
		s.countMalformed()
		return false
	}

	symbol := msg.Symbol
	if s.dir != nil {
		inst, err := s.dir.Resolve(msg.Symbol)
		if err != nil {
			s.logger.Warn("subscribe rejected", "symbol", msg.Symbol, "error", err)
			s.countRejected()
			return false
		}
		symbol = inst.Symbol
	}

	key := model.ControlMessage{Symbol: symbol, Interval: msg.Interval}.Key()
	if !model.ValidInterval(key.Interval) {
		s.logger.Warn("subscribe rejected, bad interval", "key", key.String())
		s.countRejected()
		return false
	}

	s.registry.Subscribe(key)
	return true
}

// changeLoop turns registry transitions into worker lifecycle events.
func (s *Session) changeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case change, ok := <-s.registry.Changes():
			if !ok {
				return
			}
			switch change.Type {
			case registry.Added:
				s.startWorker(change.Key)
			case registry.Removed:
				s.stopWorker(change.Key)
			}
		}
	}
}

// pushCapable reports whether symbol streams over the push feed.
func (s *Session) pushCapable(symbol string) bool {
	if s.pusher == nil {
		return false
	}
	if len(s.cfg.Source.PushSymbols) == 0 {
		return true
	}
	for _, ps := range s.cfg.Source.PushSymbols {
		if ps == symbol {
			return true
		}
	}
	return false
}

func (s *Session) startWorker(key model.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pushCapable(key.Symbol) {
		// One feed per symbol; additional intervals fan out from it.
		if _, running := s.pushWorkers[key.Symbol]; running {
			return
		}
		wctx, wcancel := context.WithCancel(s.ctx)
		s.pushWorkers[key.Symbol] = wcancel
		s.wg.Add(1)
		go s.pushWorker(wctx, key.Symbol)
		return
	}

	if _, running := s.pollWorkers[key]; running {
		return
	}
	wctx, wcancel := context.WithCancel(s.ctx)
	s.pollWorkers[key] = wcancel
	s.wg.Add(1)
	go s.pollWorker(wctx, key)
}

func (s *Session) stopWorker(key model.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.pollWorkers[key]; ok {
		cancel()
		delete(s.pollWorkers, key)
		return
	}

	// A push feed stays up while any interval for the symbol remains.
	if cancel, ok := s.pushWorkers[key.Symbol]; ok {
		if len(s.registry.IntervalsFor(key.Symbol)) == 0 {
			cancel()
			delete(s.pushWorkers, key.Symbol)
		}
	}
}

// emit validates, deduplicates and publishes one polled point.
func (s *Session) emit(key model.Key, point model.DataPoint, logger *slog.Logger) {
	if err := point.Validate(); err != nil {
		logger.Warn("invalid point discarded", "error", err)
		s.mu.Lock()
		s.invalid++
		s.mu.Unlock()
		return
	}

	if last, ok := s.filter.Last(key); ok && point.Timestamp.Before(last.Timestamp) {
		logger.Debug("out of order point discarded", "timestamp", point.Timestamp)
		s.mu.Lock()
		s.stale++
		s.mu.Unlock()
		return
	}

	if !s.filter.ShouldEmit(key, point) {
		return
	}

	s.queue.Publish(point)
}

func (s *Session) countProcessed() {
	s.mu.Lock()
	s.ingest.Processed++
	s.mu.Unlock()
}

func (s *Session) countMalformed() {
	s.mu.Lock()
	s.ingest.Malformed++
	s.mu.Unlock()
}

func (s *Session) countRejected() {
	s.mu.Lock()
	s.ingest.Rejected++
	s.mu.Unlock()
}

// sleep waits d or until ctx is done. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
