// Package bar builds closed OHLC bars per timeframe from normalized ticks.
// The aggregator is the single authority on bar finality: a bar is emitted
// exactly once, at boundary crossing, and is immutable afterward. No
// consumer ever observes an in-progress bar.
package bar

import (
	"time"

	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/indicator"
	"github.com/priyakantc/smc-replay/internal/tick"
)

// Bar is one completed interval. OHLC is mid-price derived; bid/ask extremes
// are carried for conservative fill and bracket resolution.
type Bar struct {
	Timeframe time.Duration `json:"timeframe"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	BidHigh  float64 `json:"bid_high"`
	BidLow   float64 `json:"bid_low"`
	BidClose float64 `json:"bid_close"`
	AskHigh  float64 `json:"ask_high"`
	AskLow   float64 `json:"ask_low"`
	AskClose float64 `json:"ask_close"`

	Volume    float64 `json:"volume"`
	TickCount int     `json:"tick_count"`
	SpreadAvg float64 `json:"spread_avg"`
	Session   string  `json:"session_label"`

	Ind indicator.Snapshot `json:"indicators"`
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Body returns the absolute open-to-close distance.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

type accumulator struct {
	start     time.Time
	open      float64
	high      float64
	low       float64
	close     float64
	bidHigh   float64
	bidLow    float64
	bidClose  float64
	askHigh   float64
	askLow    float64
	askClose  float64
	volume    float64
	tickCount int
	spreadSum float64
}

// Aggregator maintains one open accumulator per configured timeframe.
// Every timeframe is derived from the same tick stream; higher timeframes
// are never resampled from lower-timeframe bars.
type Aggregator struct {
	frames   []time.Duration // ascending
	sessions []config.Window
	open     map[time.Duration]*accumulator
	trackers map[time.Duration]*indicator.Tracker
}

func NewAggregator(frames []time.Duration, sessions []config.Window) *Aggregator {
	a := &Aggregator{
		frames:   frames,
		sessions: sessions,
		open:     make(map[time.Duration]*accumulator, len(frames)),
		trackers: make(map[time.Duration]*indicator.Tracker, len(frames)),
	}
	for _, f := range frames {
		a.trackers[f] = indicator.NewTracker()
	}
	return a
}

// Apply folds one normalized tick into every open accumulator and returns
// the bars finalized by it, smallest timeframe first. Because timeframe
// boundaries nest, emitting in ascending order guarantees every T bar in a
// T+1 interval is finalized before the T+1 bar.
func (a *Aggregator) Apply(t tick.Tick) []Bar {
	var out []Bar
	for _, f := range a.frames {
		boundary := t.Timestamp.Truncate(f)
		acc := a.open[f]
		if acc != nil && boundary.After(acc.start) {
			out = append(out, a.finalize(f, acc))
			acc = nil
		}
		if acc == nil {
			acc = seed(boundary, t)
			a.open[f] = acc
			continue
		}
		fold(acc, t)
	}
	return out
}

// Flush finalizes whatever is still open, smallest timeframe first. Called
// once at stream end; the aggregator is not reusable afterwards.
func (a *Aggregator) Flush() []Bar {
	var out []Bar
	for _, f := range a.frames {
		if acc := a.open[f]; acc != nil {
			out = append(out, a.finalize(f, acc))
			delete(a.open, f)
		}
	}
	return out
}

func seed(start time.Time, t tick.Tick) *accumulator {
	mid := t.Mid()
	return &accumulator{
		start:     start,
		open:      mid,
		high:      mid,
		low:       mid,
		close:     mid,
		bidHigh:   t.Bid,
		bidLow:    t.Bid,
		bidClose:  t.Bid,
		askHigh:   t.Ask,
		askLow:    t.Ask,
		askClose:  t.Ask,
		volume:    tickVolume(t),
		tickCount: 1,
		spreadSum: t.Spread(),
	}
}

func fold(acc *accumulator, t tick.Tick) {
	mid := t.Mid()
	if mid > acc.high {
		acc.high = mid
	}
	if mid < acc.low {
		acc.low = mid
	}
	acc.close = mid
	if t.Bid > acc.bidHigh {
		acc.bidHigh = t.Bid
	}
	if t.Bid < acc.bidLow {
		acc.bidLow = t.Bid
	}
	acc.bidClose = t.Bid
	if t.Ask > acc.askHigh {
		acc.askHigh = t.Ask
	}
	if t.Ask < acc.askLow {
		acc.askLow = t.Ask
	}
	acc.askClose = t.Ask
	acc.volume += tickVolume(t)
	acc.tickCount++
	acc.spreadSum += t.Spread()
}

func tickVolume(t tick.Tick) float64 {
	v := t.BidSize + t.AskSize
	if v <= 0 {
		return 1 // per-tick proxy when the feed carries no sizes
	}
	return v
}

func (a *Aggregator) finalize(f time.Duration, acc *accumulator) Bar {
	snap := a.trackers[f].Push(acc.high, acc.low, acc.close)
	return Bar{
		Timeframe: f,
		Start:     acc.start,
		End:       acc.start.Add(f),
		Open:      acc.open,
		High:      acc.high,
		Low:       acc.low,
		Close:     acc.close,
		BidHigh:   acc.bidHigh,
		BidLow:    acc.bidLow,
		BidClose:  acc.bidClose,
		AskHigh:   acc.askHigh,
		AskLow:    acc.askLow,
		AskClose:  acc.askClose,
		Volume:    acc.volume,
		TickCount: acc.tickCount,
		SpreadAvg: acc.spreadSum / float64(acc.tickCount),
		Session:   a.sessionLabel(acc.start),
		Ind:       snap,
	}
}

func (a *Aggregator) sessionLabel(start time.Time) string {
	h := start.UTC().Hour()
	for _, w := range a.sessions {
		if w.Contains(h) {
			return w.Name
		}
	}
	return ""
}
