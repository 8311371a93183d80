// Package yahoo implements the polling contract against the Yahoo
// Finance v8 chart API.
package yahoo

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/feedmux/feedmux/internal/model"
)

// DefaultBaseURL is the production chart API endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const providerSlug = "yahoo-finance"

// Client polls latest bars from the chart API. It implements source.Poller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a chart API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURL overrides the API endpoint (tests point this at a mock).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Capabilities reports that this backend is poll only.
func (c *Client) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name:             "Yahoo Finance",
		Version:          "1.0.0",
		Slug:             providerSlug,
		SupportsRealtime: true,
		DataTypes:        []string{"ohlcv"},
		Intervals:        supportedIntervals(),
		RateLimits: model.RateLimits{
			RequestsPerMinute:  8,
			MinIntervalSeconds: 5,
		},
		Realtime: model.RealtimeCaps{Poll: true},
	}
}

// StatusError represents a non-2xx response from the chart API.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yahoo api error %d: %s", e.StatusCode, e.Message)
}

// IsThrottled reports whether the upstream rejected us for rate limiting.
func (e *StatusError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
