package tick

import (
	"math"
	"testing"
	"time"
)

func ts(sec, ms int) time.Time {
	return time.Date(2024, 3, 1, 10, 0, sec, ms*int(time.Millisecond), time.UTC)
}

func raw(at time.Time, bid, ask float64) Raw {
	return Raw{Timestamp: at, Bid: bid, Ask: ask, Source: SourceDukascopy}
}

type captureSink struct{ flags []Flag }

func (c *captureSink) Flag(f Flag) { c.flags = append(c.flags, f) }

func (c *captureSink) kinds() []FlagKind {
	out := make([]FlagKind, len(c.flags))
	for i, f := range c.flags {
		out[i] = f.Kind
	}
	return out
}

func TestBadQuotesDroppedWithFlag(t *testing.T) {
	sink := &captureSink{}
	n := NewNormalizer(sink)

	for _, r := range []Raw{
		raw(ts(0, 0), 0, 1.1),      // zero bid
		raw(ts(0, 100), 1.1, 0),    // zero ask
		raw(ts(0, 200), 1.2, 1.1),  // crossed
		raw(ts(0, 300), -1.0, 1.1), // negative
	} {
		if got := n.Push(r); got != nil {
			t.Fatalf("bad quote emitted ticks: %v", got)
		}
	}
	if len(sink.flags) != 4 {
		t.Fatalf("got %d flags, want 4", len(sink.flags))
	}
	for _, k := range sink.kinds() {
		if k != FlagBadQuote {
			t.Fatalf("flag kind = %s, want %s", k, FlagBadQuote)
		}
	}
}

func TestDuplicateTimestampKeepsLatest(t *testing.T) {
	sink := &captureSink{}
	n := NewNormalizer(sink)

	n.Push(raw(ts(0, 0), 1.1000, 1.1002))
	n.Push(raw(ts(0, 0), 1.1005, 1.1007)) // same timestamp, should win
	out := n.Push(raw(ts(0, 500), 1.1010, 1.1012))

	if len(out) != 1 {
		t.Fatalf("got %d ticks, want 1", len(out))
	}
	if out[0].Bid != 1.1005 {
		t.Fatalf("released bid = %v, want the later duplicate 1.1005", out[0].Bid)
	}
	if len(sink.flags) != 1 || sink.flags[0].Kind != FlagDuplicate {
		t.Fatalf("flags = %v, want one duplicate_ts", sink.kinds())
	}
}

func TestOutOfOrderDropped(t *testing.T) {
	sink := &captureSink{}
	n := NewNormalizer(sink)

	n.Push(raw(ts(5, 0), 1.1, 1.1002))
	if got := n.Push(raw(ts(4, 0), 1.2, 1.2002)); got != nil {
		t.Fatalf("regressed tick emitted: %v", got)
	}
	out := n.Flush()
	if len(out) != 1 || !out[0].Timestamp.Equal(ts(5, 0)) {
		t.Fatalf("pending tick lost after out-of-order drop: %v", out)
	}
	if len(sink.flags) != 1 || sink.flags[0].Kind != FlagOutOfOrder {
		t.Fatalf("flags = %v, want one out_of_order", sink.kinds())
	}
}

func TestShortGapForwardFilled(t *testing.T) {
	sink := &captureSink{}
	n := NewNormalizer(sink)

	n.Push(raw(ts(0, 500), 1.1000, 1.1002))
	out := n.Push(raw(ts(1, 400), 1.1010, 1.1012))

	// the original plus one synthetic copy at the 1s boundary
	if len(out) != 2 {
		t.Fatalf("got %d ticks, want 2", len(out))
	}
	if !out[1].ForwardFilled {
		t.Fatal("bridge tick not marked forward filled")
	}
	if !out[1].Timestamp.Equal(ts(1, 0)) {
		t.Fatalf("bridge timestamp = %v, want %v", out[1].Timestamp, ts(1, 0))
	}
	if out[1].Bid != 1.1000 {
		t.Fatalf("bridge bid = %v, want the stale 1.1000", out[1].Bid)
	}
}

func TestLargeGapFlagsHoleWithoutFabrication(t *testing.T) {
	sink := &captureSink{}
	n := NewNormalizer(sink)

	n.Push(raw(ts(0, 0), 1.1000, 1.1002))
	out := n.Push(raw(ts(10, 0), 1.1010, 1.1012))

	if len(out) != 1 {
		t.Fatalf("got %d ticks across a hole, want only the released pending", len(out))
	}
	if out[0].ForwardFilled {
		t.Fatal("released tick wrongly marked forward filled")
	}
	if n.Holes() != 1 {
		t.Fatalf("Holes() = %d, want 1", n.Holes())
	}
	if len(sink.flags) != 1 || sink.flags[0].Kind != FlagDataHole {
		t.Fatalf("flags = %v, want one data_hole", sink.kinds())
	}
}

func TestFlushReleasesPending(t *testing.T) {
	n := NewNormalizer(nil)
	n.Push(raw(ts(0, 0), 1.1, 1.1002))
	out := n.Flush()
	if len(out) != 1 {
		t.Fatalf("Flush returned %d ticks, want 1", len(out))
	}
	if n.Flush() != nil {
		t.Fatal("second Flush returned ticks")
	}
}

func TestMidAndSpread(t *testing.T) {
	tk := Tick{Bid: 1.1000, Ask: 1.1002}
	if got := tk.Mid(); math.Abs(got-1.1001) > 1e-9 {
		t.Fatalf("Mid = %v, want 1.1001", got)
	}
	if got := tk.Spread(); math.Abs(got-0.0002) > 1e-9 {
		t.Fatalf("Spread = %v, want 0.0002", got)
	}
}
