package dedup

import (
	"testing"
	"time"

	"github.com/feedmux/feedmux/internal/model"
)

func point(close float64, volume float64) model.DataPoint {
	return model.DataPoint{
		Symbol:    "AAPL",
		Timestamp: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
		Open:      190,
		High:      192,
		Low:       189,
		Close:     close,
		Volume:    volume,
		Interval:  "1m",
	}
}

func TestShouldEmit_SuppressesIdenticalConsecutive(t *testing.T) {
	f := New()
	key := model.Key{Symbol: "AAPL", Interval: "1m"}

	if !f.ShouldEmit(key, point(191, 1000)) {
		t.Fatal("first point should always emit")
	}
	if f.ShouldEmit(key, point(191, 1000)) {
		t.Error("identical consecutive point should be suppressed")
	}

	stats := f.Stats()
	if stats.Emitted != 1 || stats.Suppressed != 1 {
		t.Errorf("stats = %+v, want 1 emitted / 1 suppressed", stats)
	}
}

func TestShouldEmit_VolumeOnlyChangeEmits(t *testing.T) {
	f := New()
	key := model.Key{Symbol: "AAPL", Interval: "1m"}

	f.ShouldEmit(key, point(191, 1000))
	if !f.ShouldEmit(key, point(191, 1001)) {
		t.Error("point differing only in volume should emit")
	}
}

func TestShouldEmit_KeysIndependent(t *testing.T) {
	f := New()
	k1 := model.Key{Symbol: "AAPL", Interval: "1m"}
	k5 := model.Key{Symbol: "AAPL", Interval: "5m"}

	f.ShouldEmit(k1, point(191, 1000))
	if !f.ShouldEmit(k5, point(191, 1000)) {
		t.Error("same values under a different key should emit")
	}
}

func TestForget(t *testing.T) {
	f := New()
	key := model.Key{Symbol: "AAPL", Interval: "1m"}

	f.ShouldEmit(key, point(191, 1000))
	f.Forget(key)

	if _, ok := f.Last(key); ok {
		t.Fatal("Last should report no state after Forget")
	}
	if !f.ShouldEmit(key, point(191, 1000)) {
		t.Error("identical point should emit again after Forget")
	}
}
