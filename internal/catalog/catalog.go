// Package catalog is the instrument directory: the set of symbols a
// session is willing to stream, with exchange qualified symbol parsing.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/feedmux/feedmux/internal/config"
)

var (
	// ErrBadSymbolFormat means the symbol string could not be parsed.
	ErrBadSymbolFormat = errors.New("catalog: bad symbol format")

	// ErrUnknownSymbol means the symbol is not in the directory.
	ErrUnknownSymbol = errors.New("catalog: unknown symbol")
)

// Instrument is one directory entry.
type Instrument struct {
	Symbol    string
	Name      string
	Exchange  string
	Type      string
	UpdatedAt time.Time
}

// ParseSymbol splits an EXCHANGE:SYMBOL string. The exchange qualifier
// is optional; a bare symbol parses with an empty exchange.
func ParseSymbol(raw string) (exchange, symbol string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty symbol", ErrBadSymbolFormat)
	}

	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("%w: %q", ErrBadSymbolFormat, raw)
		}
		return strings.ToUpper(parts[0]), parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrBadSymbolFormat, raw)
	}
}

// Directory holds the known instruments. In strict mode Resolve rejects
// symbols that are not listed; otherwise unknown symbols pass through.
type Directory struct {
	logger *slog.Logger
	strict bool

	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewDirectory builds a directory from configured instruments.
func NewDirectory(cfg config.CatalogConfig, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Directory{
		logger:      logger,
		strict:      cfg.Strict,
		instruments: make(map[string]Instrument, len(cfg.Instruments)),
	}
	for _, ic := range cfg.Instruments {
		d.instruments[ic.Symbol] = Instrument{
			Symbol:    ic.Symbol,
			Name:      ic.Name,
			Exchange:  ic.Exchange,
			Type:      ic.Type,
			UpdatedAt: time.Now().UTC(),
		}
	}
	return d
}

// Resolve parses raw and checks it against the directory. It fails fast
// so a bad subscription never reaches a stream worker.
func (d *Directory) Resolve(raw string) (Instrument, error) {
	_, symbol, err := ParseSymbol(raw)
	if err != nil {
		return Instrument{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	inst, ok := d.instruments[symbol]
	if !ok {
		if d.strict {
			return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
		}
		// Permissive mode admits anything that parses.
		return Instrument{Symbol: symbol, UpdatedAt: time.Now().UTC()}, nil
	}
	return inst, nil
}

// Add registers or replaces an instrument.
func (d *Directory) Add(inst Instrument) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst.UpdatedAt = time.Now().UTC()
	d.instruments[inst.Symbol] = inst
}

// All returns a copy of the directory contents.
func (d *Directory) All() []Instrument {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Instrument, 0, len(d.instruments))
	for _, inst := range d.instruments {
		out = append(out, inst)
	}
	return out
}

// Len returns the number of known instruments.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.instruments)
}
