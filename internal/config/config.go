package config

import "time"

// ProviderConfig is the root configuration for a feedmux provider instance.
type ProviderConfig struct {
	Provider  ProviderInfo            `yaml:"provider"`
	Source    SourceConfig            `yaml:"source"`
	RateLimit RateLimitConfig         `yaml:"rate_limit"`
	Breaker   BreakerConfig           `yaml:"breaker"`
	Stream    StreamConfig            `yaml:"stream"`
	Cadence   map[string]time.Duration `yaml:"cadence"`
	Catalog   CatalogConfig           `yaml:"catalog"`
	Health    HealthConfig            `yaml:"health"`
}

// ProviderInfo identifies this provider to consumers.
type ProviderInfo struct {
	Name    string `yaml:"name"`
	Slug    string `yaml:"slug"`
	Version string `yaml:"version"`
}

// SourceConfig selects and configures the upstream data source.
type SourceConfig struct {
	// Kind selects the poll source implementation ("yahoo" or "" for none).
	Kind string `yaml:"kind"`

	// BaseURL overrides the poll source endpoint (tests, proxies).
	BaseURL string `yaml:"base_url"`

	// FeedURL enables the websocket push feed when non-empty.
	FeedURL string `yaml:"feed_url"`

	// PushSymbols restricts push mode to these symbols. Empty means every
	// symbol is push-capable when FeedURL is set.
	PushSymbols []string `yaml:"push_symbols"`

	// Timeout applies to individual upstream HTTP calls.
	Timeout time.Duration `yaml:"timeout"`

	// PingTimeout marks a push connection stale when no ping arrives.
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

// RateLimitConfig tunes the shared upstream rate limiter.
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	PerMinute   int           `yaml:"per_minute"`
	Window      time.Duration `yaml:"window"`
	CooldownMin time.Duration `yaml:"cooldown_min"`
	CooldownMax time.Duration `yaml:"cooldown_max"`
	Jitter      time.Duration `yaml:"jitter"`
}

// BreakerConfig tunes the per-symbol circuit breaker.
type BreakerConfig struct {
	Threshold int `yaml:"threshold"`
}

// StreamConfig tunes the session engine.
type StreamConfig struct {
	QueueSize          int           `yaml:"queue_size"`
	NextTimeout        time.Duration `yaml:"next_timeout"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	PauseCheckInterval time.Duration `yaml:"pause_check_interval"`
	CycleInterval      time.Duration `yaml:"cycle_interval"`
	SymbolDelayMin     time.Duration `yaml:"symbol_delay_min"`
	SymbolDelayMax     time.Duration `yaml:"symbol_delay_max"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	StopGracePeriod    time.Duration `yaml:"stop_grace_period"`
}

// CatalogConfig configures the instrument directory.
type CatalogConfig struct {
	// Instruments seeds the directory from config.
	Instruments []InstrumentConfig `yaml:"instruments"`

	// Strict rejects subscriptions for symbols missing from the directory.
	Strict bool `yaml:"strict"`

	// Database optionally persists the directory between runs.
	Database DBConfig `yaml:"database"`
}

// InstrumentConfig seeds one catalog entry.
type InstrumentConfig struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Exchange string `yaml:"exchange"`
	Type     string `yaml:"type"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database connection is configured at all.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
