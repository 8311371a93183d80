package catalog

import (
	"errors"
	"testing"

	"github.com/feedmux/feedmux/internal/config"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantExchange string
		wantSymbol   string
		wantErr      bool
	}{
		{name: "bare symbol", raw: "AAPL", wantSymbol: "AAPL"},
		{name: "qualified", raw: "NASDAQ:AAPL", wantExchange: "NASDAQ", wantSymbol: "AAPL"},
		{name: "lowercase exchange normalized", raw: "binance:BTCUSD", wantExchange: "BINANCE", wantSymbol: "BTCUSD"},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "empty exchange", raw: ":AAPL", wantErr: true},
		{name: "empty symbol", raw: "NASDAQ:", wantErr: true},
		{name: "too many parts", raw: "A:B:C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exchange, symbol, err := ParseSymbol(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrBadSymbolFormat) {
					t.Fatalf("err = %v, want ErrBadSymbolFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSymbol(%q): %v", tt.raw, err)
			}
			if exchange != tt.wantExchange || symbol != tt.wantSymbol {
				t.Errorf("got (%q, %q), want (%q, %q)", exchange, symbol, tt.wantExchange, tt.wantSymbol)
			}
		})
	}
}

func TestDirectory_ResolveStrict(t *testing.T) {
	d := NewDirectory(config.CatalogConfig{
		Strict: true,
		Instruments: []config.InstrumentConfig{
			{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Type: "equity"},
		},
	}, nil)

	inst, err := d.Resolve("NASDAQ:AAPL")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if inst.Name != "Apple Inc." {
		t.Errorf("name = %q", inst.Name)
	}

	if _, err := d.Resolve("MSFT"); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
	if _, err := d.Resolve("::"); !errors.Is(err, ErrBadSymbolFormat) {
		t.Fatalf("err = %v, want ErrBadSymbolFormat", err)
	}
}

func TestDirectory_ResolvePermissive(t *testing.T) {
	d := NewDirectory(config.CatalogConfig{}, nil)

	inst, err := d.Resolve("MSFT")
	if err != nil {
		t.Fatalf("permissive resolve: %v", err)
	}
	if inst.Symbol != "MSFT" {
		t.Errorf("symbol = %q", inst.Symbol)
	}

	// Format errors still reject even in permissive mode.
	if _, err := d.Resolve(""); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}

func TestDirectory_Add(t *testing.T) {
	d := NewDirectory(config.CatalogConfig{Strict: true}, nil)
	d.Add(Instrument{Symbol: "ETHUSD", Exchange: "BINANCE", Type: "crypto"})

	if _, err := d.Resolve("ETHUSD"); err != nil {
		t.Fatalf("Resolve after Add: %v", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d", d.Len())
	}
}
