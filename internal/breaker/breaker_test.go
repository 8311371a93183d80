package breaker

import "testing"

func TestShouldSkip_TripsOnceAtThreshold(t *testing.T) {
	b := New(3, nil)

	for i := 0; i < 3; i++ {
		if b.ShouldSkip("AAPL") {
			t.Fatalf("ShouldSkip true after %d failures, threshold is 3", i)
		}
		b.RecordFailure("AAPL")
	}

	if !b.ShouldSkip("AAPL") {
		t.Fatal("ShouldSkip false at threshold")
	}

	// The trip consumed the counter: next check passes regardless of what
	// happened before.
	if b.ShouldSkip("AAPL") {
		t.Error("ShouldSkip true immediately after a trip, want single-cycle skip")
	}

	if got := b.Stats().Trips; got != 1 {
		t.Errorf("Trips = %d, want 1", got)
	}
}

func TestRecordSuccess_ResetsCounter(t *testing.T) {
	b := New(2, nil)

	b.RecordFailure("MSFT")
	b.RecordSuccess("MSFT")
	b.RecordFailure("MSFT")

	if b.ShouldSkip("MSFT") {
		t.Error("ShouldSkip true after success reset, counter should have restarted")
	}
}

func TestSymbolsIsolated(t *testing.T) {
	b := New(2, nil)

	b.RecordFailure("AAA")
	b.RecordFailure("AAA")
	b.RecordFailure("BBB")

	if !b.ShouldSkip("AAA") {
		t.Error("AAA should have tripped")
	}
	if b.ShouldSkip("BBB") {
		t.Error("BBB should not be affected by AAA failures")
	}
}

func TestNew_BadThresholdFallsBack(t *testing.T) {
	b := New(0, nil)
	if b.threshold != DefaultThreshold {
		t.Errorf("threshold = %d, want %d", b.threshold, DefaultThreshold)
	}
}
