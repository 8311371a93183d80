package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is assumed when a control message omits the interval.
const DefaultInterval = "1m"

// IntervalTick marks points derived from a last-price feed rather than a
// full candle (open=high=low=close).
const IntervalTick = "tick"

// validIntervals is the closed set of bar intervals feedmux normalizes to.
var validIntervals = map[string]struct{}{
	"1m": {}, "2m": {}, "5m": {}, "15m": {}, "30m": {},
	"60m": {}, "90m": {}, "1h": {}, "4h": {},
	"1d": {}, "5d": {}, "1wk": {}, "1mo": {}, "3mo": {},
	IntervalTick: {},
}

// ValidInterval reports whether s is a recognized bar interval.
func ValidInterval(s string) bool {
	_, ok := validIntervals[s]
	return ok
}

// Key identifies one subscription within a session.
type Key struct {
	Symbol   string
	Interval string
}

// String renders the key in symbol|interval form (log and map friendly).
func (k Key) String() string {
	return k.Symbol + "|" + k.Interval
}

// Subscription is one active (symbol, interval) pair in the registry.
type Subscription struct {
	Key       Key
	CreatedAt time.Time
}

// DataPoint is a normalized OHLCV record.
//
// Ownership: produced by a fetch source, owned by the stream worker until
// handed to the multiplexer queue, then owned by the consumer.
type DataPoint struct {
	Symbol    string            `json:"symbol"`
	Timestamp time.Time         `json:"timestamp"`
	Open      float64           `json:"open"`
	High      float64           `json:"high"`
	Low       float64           `json:"low"`
	Close     float64           `json:"close"`
	Volume    float64           `json:"volume"`
	Interval  string            `json:"interval"`
	Provider  string            `json:"provider"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Key returns the subscription key this point belongs to.
func (p DataPoint) Key() Key {
	return Key{Symbol: p.Symbol, Interval: p.Interval}
}

// SameBar reports whether two points carry identical value fields.
// Timestamp and all five OHLCV values must match exactly.
func (p DataPoint) SameBar(other DataPoint) bool {
	return p.Open == other.Open &&
		p.High == other.High &&
		p.Low == other.Low &&
		p.Close == other.Close &&
		p.Volume == other.Volume &&
		p.Timestamp.Equal(other.Timestamp)
}

// Validation errors.
var (
	ErrMissingSymbol = errors.New("symbol is required")
	ErrZeroTimestamp = errors.New("timestamp is required")
)

// Validate checks the OHLCV invariants. Points failing validation are
// counted as fetch failures and never emitted.
func (p DataPoint) Validate() error {
	if p.Symbol == "" {
		return ErrMissingSymbol
	}
	if p.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if p.Open < 0 || p.High < 0 || p.Low < 0 || p.Close < 0 {
		return fmt.Errorf("negative price for %s", p.Symbol)
	}
	if p.High < p.Low {
		return fmt.Errorf("high %v below low %v for %s", p.High, p.Low, p.Symbol)
	}
	if p.Open < p.Low || p.Open > p.High {
		return fmt.Errorf("open %v outside [%v, %v] for %s", p.Open, p.Low, p.High, p.Symbol)
	}
	if p.Close < p.Low || p.Close > p.High {
		return fmt.Errorf("close %v outside [%v, %v] for %s", p.Close, p.Low, p.High, p.Symbol)
	}
	if p.Volume < 0 {
		return fmt.Errorf("negative volume %v for %s", p.Volume, p.Symbol)
	}
	if !ValidInterval(p.Interval) {
		return fmt.Errorf("invalid interval %q for %s", p.Interval, p.Symbol)
	}
	return nil
}
