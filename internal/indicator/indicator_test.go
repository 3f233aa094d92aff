package indicator

import (
	"math"
	"testing"
)

func TestATRWarmupAndValue(t *testing.T) {
	tr := NewTracker()

	// constant 1.0-range bars with no close gaps
	var snap Snapshot
	for i := 0; i < 14; i++ {
		snap = tr.Push(101, 100, 100.5)
	}
	if math.Abs(snap.ATR14-1.0) > 1e-9 {
		t.Fatalf("ATR14 = %v, want 1.0", snap.ATR14)
	}
	if snap.ATR100 != 0 {
		t.Fatalf("ATR100 = %v before long window filled, want 0", snap.ATR100)
	}

	for i := 0; i < 86; i++ {
		snap = tr.Push(101, 100, 100.5)
	}
	if snap.Bars != 100 {
		t.Fatalf("Bars = %d, want 100", snap.Bars)
	}
	if math.Abs(snap.ATR100-1.0) > 1e-9 {
		t.Fatalf("ATR100 = %v after 100 bars, want 1.0", snap.ATR100)
	}
}

func TestATRUsesTrueRangeAcrossGaps(t *testing.T) {
	tr := NewTracker()
	tr.Push(101, 100, 100)
	// gap up: true range measured against the previous close
	snap := tr.Push(105, 104, 104.5)
	wantTR := 5.0 // |105 - 100|
	wantATR := (1.0 + wantTR) / 2
	if math.Abs(snap.ATR14-wantATR) > 1e-9 {
		t.Fatalf("ATR14 = %v, want %v", snap.ATR14, wantATR)
	}
}

func TestChopHighWhenRangebound(t *testing.T) {
	tr := NewTracker()

	// overlapping bars in a tight range: sum of TR far exceeds net range
	var snap Snapshot
	for i := 0; i < 20; i++ {
		snap = tr.Push(101, 100, 100.5)
	}
	// sumTR = 14, range = 1 -> 100*log10(14)/log10(14) = 100
	if math.Abs(snap.CHOP14-100) > 1e-6 {
		t.Fatalf("CHOP14 = %v for pure chop, want 100", snap.CHOP14)
	}
}

func TestChopLowWhenTrending(t *testing.T) {
	tr := NewTracker()

	var snap Snapshot
	for i := 0; i < 20; i++ {
		base := float64(i) * 1.0
		snap = tr.Push(base+1, base, base+1)
	}
	// each bar extends the range by its own TR, CHOP near its floor
	if snap.CHOP14 > 38.2 {
		t.Fatalf("CHOP14 = %v for a clean trend, want below 38.2", snap.CHOP14)
	}
}

func TestADXRisesInTrend(t *testing.T) {
	tr := NewTracker()

	var snap Snapshot
	for i := 0; i < 40; i++ {
		base := float64(i) * 2.0
		snap = tr.Push(base+1, base, base+1)
	}
	if snap.ADX14 < 20 {
		t.Fatalf("ADX14 = %v in a one-way trend, want at least 20", snap.ADX14)
	}
}

func TestWarm(t *testing.T) {
	tr := NewTracker()
	snap := tr.Push(1, 0, 0.5)
	if snap.Warm(2) {
		t.Fatal("Warm(2) true after one bar")
	}
	snap = tr.Push(1, 0, 0.5)
	if !snap.Warm(2) {
		t.Fatal("Warm(2) false after two bars")
	}
}
