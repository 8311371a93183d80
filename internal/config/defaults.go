package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSourceTimeout      = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultMinInterval        = 5 * time.Second
	DefaultPerMinute          = 8
	DefaultWindow             = time.Minute
	DefaultCooldownMin        = 120 * time.Second
	DefaultCooldownMax        = 180 * time.Second
	DefaultJitter             = 3 * time.Second
	DefaultBreakerThreshold   = 5
	DefaultQueueSize          = 1000
	DefaultNextTimeout        = 1 * time.Second
	DefaultFetchTimeout       = 30 * time.Second
	DefaultPauseCheckInterval = 1 * time.Second
	DefaultCycleInterval      = 10 * time.Second
	DefaultSymbolDelayMin     = 5 * time.Second
	DefaultSymbolDelayMax     = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultStopGracePeriod    = 30 * time.Second
	DefaultCadence            = 10 * time.Minute
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultHealthPort         = 8080
	DefaultHealthPath         = "/health"
)

// DefaultCadenceTable returns the per-interval minimum poll cadence.
// Sub-minute bars poll far less often than the bar interval itself to
// protect upstream budgets.
func DefaultCadenceTable() map[string]time.Duration {
	return map[string]time.Duration{
		"1m":  180 * time.Second,
		"2m":  240 * time.Second,
		"5m":  360 * time.Second,
		"15m": 900 * time.Second,
		"30m": 1800 * time.Second,
		"60m": 3600 * time.Second,
		"1h":  3600 * time.Second,
		"1d":  7200 * time.Second,
	}
}

// ApplyDefaults fills unset fields with defaults.
func (c *ProviderConfig) ApplyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = c.Provider.Slug
	}
	if c.Provider.Version == "" {
		c.Provider.Version = "0.0.0"
	}

	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.PingTimeout == 0 {
		c.Source.PingTimeout = DefaultPingTimeout
	}

	if c.RateLimit.MinInterval == 0 {
		c.RateLimit.MinInterval = DefaultMinInterval
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = DefaultPerMinute
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultWindow
	}
	if c.RateLimit.CooldownMin == 0 {
		c.RateLimit.CooldownMin = DefaultCooldownMin
	}
	if c.RateLimit.CooldownMax == 0 {
		c.RateLimit.CooldownMax = DefaultCooldownMax
	}
	if c.RateLimit.Jitter == 0 {
		c.RateLimit.Jitter = DefaultJitter
	}

	if c.Breaker.Threshold == 0 {
		c.Breaker.Threshold = DefaultBreakerThreshold
	}

	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = DefaultQueueSize
	}
	if c.Stream.NextTimeout == 0 {
		c.Stream.NextTimeout = DefaultNextTimeout
	}
	if c.Stream.FetchTimeout == 0 {
		c.Stream.FetchTimeout = DefaultFetchTimeout
	}
	if c.Stream.PauseCheckInterval == 0 {
		c.Stream.PauseCheckInterval = DefaultPauseCheckInterval
	}
	if c.Stream.CycleInterval == 0 {
		c.Stream.CycleInterval = DefaultCycleInterval
	}
	if c.Stream.SymbolDelayMin == 0 {
		c.Stream.SymbolDelayMin = DefaultSymbolDelayMin
	}
	if c.Stream.SymbolDelayMax == 0 {
		c.Stream.SymbolDelayMax = DefaultSymbolDelayMax
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.StopGracePeriod == 0 {
		c.Stream.StopGracePeriod = DefaultStopGracePeriod
	}

	if c.Cadence == nil {
		c.Cadence = DefaultCadenceTable()
	}

	if c.Catalog.Database.Enabled() {
		applyDBDefaults(&c.Catalog.Database)
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
