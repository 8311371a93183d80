// Package wsfeed implements the push contract over a WebSocket tick
// feed. Each open feed carries last-trade ticks for a single symbol;
// ticks are widened to flat bars (open=high=low=close) so downstream
// handling is uniform with polled data.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/source"
)

// ErrStaleConnection signals that the peer stopped answering pings.
var ErrStaleConnection = errors.New("wsfeed: connection stale, no ping received")

const (
	defaultBufferSize  = 256
	defaultPingTimeout = 60 * time.Second
	writeTimeout       = 10 * time.Second
	heartbeatInterval  = 30 * time.Second
	providerSlug       = "wsfeed"
)

// Opener dials tick feeds. It implements source.PushOpener.
type Opener struct {
	url         string
	pingTimeout time.Duration
	bufferSize  int
	logger      *slog.Logger
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// NewOpener creates an opener for the feed at url.
func NewOpener(url string, opts ...OpenerOption) *Opener {
	o := &Opener{
		url:         url,
		pingTimeout: defaultPingTimeout,
		bufferSize:  defaultBufferSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithPingTimeout sets how long a silent connection is tolerated.
func WithPingTimeout(d time.Duration) OpenerOption {
	return func(o *Opener) {
		o.pingTimeout = d
	}
}

// WithBufferSize sets the tick channel capacity.
func WithBufferSize(n int) OpenerOption {
	return func(o *Opener) {
		o.bufferSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenerOption {
	return func(o *Opener) {
		o.logger = logger
	}
}

// subscribeMessage is sent once after dialing.
type subscribeMessage struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// tickMessage is one inbound last-trade tick.
type tickMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// OpenFeed dials the feed, subscribes symbol and starts the read and
// heartbeat loops.
func (o *Opener) OpenFeed(ctx context.Context, symbol string) (source.Feed, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	sub, _ := json.Marshal(subscribeMessage{Action: "subscribe", Symbol: symbol})
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", symbol, err)
	}

	f := &feed{
		symbol:      symbol,
		conn:        conn,
		pingTimeout: o.pingTimeout,
		logger:      o.logger.With("symbol", symbol),
		ticks:       make(chan model.DataPoint, o.bufferSize),
		errs:        make(chan error, 1),
		done:        make(chan struct{}),
		lastSeen:    time.Now(),
	}

	conn.SetPingHandler(func(data string) error {
		f.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		f.touch()
		return nil
	})

	go f.readLoop()
	go f.heartbeatLoop()

	f.logger.Debug("feed opened", "url", o.url)

	return f, nil
}

// feed implements source.Feed for one symbol.
type feed struct {
	symbol      string
	conn        *websocket.Conn
	pingTimeout time.Duration
	logger      *slog.Logger

	ticks chan model.DataPoint
	errs  chan error
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
	received int64
	dropped  int64
}

func (f *feed) Ticks() <-chan model.DataPoint {
	return f.ticks
}

func (f *feed) Errors() <-chan error {
	return f.errs
}

// Close tears down the connection. Safe to call more than once.
func (f *feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.done)

	f.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return f.conn.Close()
}

func (f *feed) touch() {
	f.mu.Lock()
	f.lastSeen = time.Now()
	f.mu.Unlock()
}

// readLoop decodes inbound ticks until the connection dies.
func (f *feed) readLoop() {
	defer close(f.ticks)

	for {
		select {
		case <-f.done:
			return
		default:
		}

		_, data, err := f.conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
			default:
				select {
				case f.errs <- err:
				default:
				}
			}
			return
		}
		f.touch()

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.Warn("malformed tick, dropping", "error", err)
			continue
		}
		if tick.Symbol != "" && tick.Symbol != f.symbol {
			continue
		}

		point := model.DataPoint{
			Symbol:    f.symbol,
			Timestamp: time.UnixMilli(tick.Timestamp).UTC(),
			Open:      tick.Price,
			High:      tick.Price,
			Low:       tick.Price,
			Close:     tick.Price,
			Volume:    tick.Volume,
			Interval:  model.IntervalTick,
			Provider:  providerSlug,
		}

		f.mu.Lock()
		f.received++
		f.mu.Unlock()

		select {
		case f.ticks <- point:
		case <-f.done:
			return
		default:
			f.mu.Lock()
			f.dropped++
			f.mu.Unlock()
			f.logger.Warn("tick buffer full, dropping tick")
		}
	}
}

// heartbeatLoop pings the peer and reports a stale connection when
// nothing has been heard for pingTimeout.
func (f *feed) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := f.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				f.logger.Debug("failed to send ping", "error", err)
			}

			f.mu.Lock()
			lastSeen := f.lastSeen
			f.mu.Unlock()

			if time.Since(lastSeen) > f.pingTimeout {
				f.logger.Warn("connection stale", "last_seen", lastSeen)
				select {
				case f.errs <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}
