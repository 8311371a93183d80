package model

// RateLimits documents the upstream call budget a provider operates under.
type RateLimits struct {
	RequestsPerMinute  int     `json:"requests_per_minute"`
	MinIntervalSeconds float64 `json:"min_interval_seconds"`
}

// RealtimeCaps declares how a provider delivers live data. Poll and Push
// are not mutually exclusive: a provider may push for some symbols and
// poll for the rest.
type RealtimeCaps struct {
	Poll        bool     `json:"poll"`
	Push        bool     `json:"push"`
	PushSymbols []string `json:"push_symbols,omitempty"` // empty + Push = all symbols push-capable
}

// Capabilities describes a provider to its consumers. It is fixed per
// session at setup time, never discovered at runtime.
type Capabilities struct {
	Name             string       `json:"name"`
	Version          string       `json:"version"`
	Slug             string       `json:"slug"`
	SupportsRealtime bool         `json:"supports_realtime"`
	DataTypes        []string     `json:"data_types"`
	Intervals        []string     `json:"intervals"`
	RateLimits       RateLimits   `json:"rate_limits"`
	Realtime         RealtimeCaps `json:"realtime"`
}

// PushCapable reports whether live data for symbol arrives over a native
// push feed rather than polling.
func (c Capabilities) PushCapable(symbol string) bool {
	if !c.Realtime.Push {
		return false
	}
	if len(c.Realtime.PushSymbols) == 0 {
		return true
	}
	for _, s := range c.Realtime.PushSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}
