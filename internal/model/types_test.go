package model

import (
	"testing"
	"time"
)

func validPoint() DataPoint {
	return DataPoint{
		Symbol:    "AAPL",
		Timestamp: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
		Open:      190.0,
		High:      192.5,
		Low:       189.2,
		Close:     191.1,
		Volume:    120345,
		Interval:  "1m",
		Provider:  "yahoo-finance",
	}
}

func TestDataPoint_Validate(t *testing.T) {
	if err := validPoint().Validate(); err != nil {
		t.Fatalf("Validate() on valid point: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*DataPoint)
	}{
		{"missing symbol", func(p *DataPoint) { p.Symbol = "" }},
		{"zero timestamp", func(p *DataPoint) { p.Timestamp = time.Time{} }},
		{"negative price", func(p *DataPoint) { p.Open = -1 }},
		{"high below low", func(p *DataPoint) { p.High = p.Low - 1 }},
		{"open above high", func(p *DataPoint) { p.Open = p.High + 1 }},
		{"close below low", func(p *DataPoint) { p.Close = p.Low - 0.5 }},
		{"negative volume", func(p *DataPoint) { p.Volume = -10 }},
		{"unknown interval", func(p *DataPoint) { p.Interval = "7m" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPoint()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestDataPoint_SameBar(t *testing.T) {
	a := validPoint()
	b := validPoint()

	if !a.SameBar(b) {
		t.Error("identical points should be the same bar")
	}

	b.Volume += 1
	if a.SameBar(b) {
		t.Error("points differing in volume only should not match")
	}

	b = validPoint()
	b.Timestamp = b.Timestamp.Add(time.Minute)
	if a.SameBar(b) {
		t.Error("points differing in timestamp should not match")
	}
}

func TestKey_String(t *testing.T) {
	k := Key{Symbol: "BINANCE:BTCUSDT", Interval: "5m"}
	if got := k.String(); got != "BINANCE:BTCUSDT|5m" {
		t.Errorf("String() = %q, want %q", got, "BINANCE:BTCUSDT|5m")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"SUBSCRIBE", ActionSubscribe, false},
		{"subscribe", ActionSubscribe, false},
		{" unsubscribe ", ActionUnsubscribe, false},
		{"PAUSE", ActionPause, false},
		{"RESUME", ActionResume, false},
		{"HALT", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAction(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestControlMessage_Key_DefaultInterval(t *testing.T) {
	m := ControlMessage{Action: ActionSubscribe, Symbol: "MSFT"}
	if got := m.Key(); got.Interval != DefaultInterval {
		t.Errorf("Key().Interval = %q, want %q", got.Interval, DefaultInterval)
	}
}

func TestCapabilities_PushCapable(t *testing.T) {
	caps := Capabilities{Realtime: RealtimeCaps{Push: true, PushSymbols: []string{"BTC-USD"}}}
	if !caps.PushCapable("BTC-USD") {
		t.Error("listed symbol should be push-capable")
	}
	if caps.PushCapable("AAPL") {
		t.Error("unlisted symbol should not be push-capable")
	}

	caps.Realtime.PushSymbols = nil
	if !caps.PushCapable("AAPL") {
		t.Error("empty push list should mean all symbols push-capable")
	}

	caps.Realtime.Push = false
	if caps.PushCapable("AAPL") {
		t.Error("push-disabled provider should not be push-capable")
	}
}
