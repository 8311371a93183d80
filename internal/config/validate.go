package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ProviderConfig) Validate() error {
	if c.Provider.Slug == "" {
		return errors.New("provider.slug is required")
	}

	if c.Source.Kind == "" && c.Source.FeedURL == "" {
		return errors.New("source.kind or source.feed_url is required")
	}
	switch c.Source.Kind {
	case "", "yahoo":
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}

	if c.RateLimit.MinInterval < 0 {
		return errors.New("rate_limit.min_interval must be >= 0")
	}
	if c.RateLimit.PerMinute < 1 {
		return errors.New("rate_limit.per_minute must be >= 1")
	}
	if c.RateLimit.CooldownMax < c.RateLimit.CooldownMin {
		return errors.New("rate_limit.cooldown_max must be >= cooldown_min")
	}

	if c.Breaker.Threshold < 1 {
		return errors.New("breaker.threshold must be >= 1")
	}

	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}
	if c.Stream.SymbolDelayMax < c.Stream.SymbolDelayMin {
		return errors.New("stream.symbol_delay_max must be >= symbol_delay_min")
	}

	for interval, d := range c.Cadence {
		if d <= 0 {
			return fmt.Errorf("cadence.%s must be > 0", interval)
		}
	}

	if c.Catalog.Database.Enabled() {
		if err := c.Catalog.Database.validate("catalog.database"); err != nil {
			return err
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
