// Package source defines the contracts a market data backend must
// implement to feed a streaming session.
//
// A backend provides at least the polling contract. Backends with a
// native push transport additionally implement PushOpener; the session
// prefers push for symbols the backend declares push capable.
package source

import (
	"context"
	"errors"

	"github.com/feedmux/feedmux/internal/model"
)

// ErrThrottled signals that the upstream rejected the request for rate
// limiting reasons. The caller reacts by entering a cooldown; it is not
// counted as a fetch failure.
var ErrThrottled = errors.New("source: upstream throttled")

// Poller fetches the most recent bar for one (symbol, interval) pair.
type Poller interface {
	// PollLatest returns the latest data point. The bool result is false
	// when the upstream had no data for the pair (not an error).
	PollLatest(ctx context.Context, symbol, interval string) (model.DataPoint, bool, error)

	// Capabilities describes what this backend supports.
	Capabilities() model.Capabilities
}

// Feed is one live push connection for a single symbol.
type Feed interface {
	// Ticks delivers incoming data points. The channel is closed when the
	// connection ends.
	Ticks() <-chan model.DataPoint

	// Errors delivers connection level failures. A receive here means the
	// feed is dead and should be reopened.
	Errors() <-chan error

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// PushOpener opens live feeds for backends with a push transport.
type PushOpener interface {
	// OpenFeed dials and subscribes a live feed for symbol.
	OpenFeed(ctx context.Context, symbol string) (Feed, error)
}
