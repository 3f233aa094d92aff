// Package structure computes liquidity-structure state per timeframe from
// finalized bars only: adaptive swing points, liquidity sweeps, displacement
// candles, market-structure shifts, fair value gaps and order blocks.
package structure

// Direction is the polarity of a structure event.
type Direction int

const (
	Bullish Direction = iota + 1
	Bearish
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "none"
	}
}

// Side distinguishes swing highs from swing lows.
type Side int

const (
	SwingHigh Side = iota + 1
	SwingLow
)

func (s Side) String() string {
	if s == SwingHigh {
		return "high"
	}
	return "low"
}

// SwingPoint is a local extreme confirmed over an adaptive lookback L: the
// extreme must exceed every bar in [i-L, i-1] and [i+1, i+L], so
// confirmation is intrinsically delayed by L bars.
type SwingPoint struct {
	Index    int     `json:"index"`
	Price    float64 `json:"price"`
	Side     Side    `json:"side"`
	Lookback int     `json:"lookback"`

	// Swept marks the point consumed for sweep purposes; it can be swept
	// at most once but remains usable as historical structure.
	Swept bool `json:"swept"`
}

// SweepType records whether the reclaim closed back through the level or
// only wicked beyond it.
type SweepType string

const (
	SweepWick  SweepType = "wick"
	SweepClose SweepType = "close"
)

// Sweep is a breach of a confirmed swing followed by a reclaim.
type Sweep struct {
	Index     int         `json:"index"`
	Direction Direction   `json:"direction"`
	Swing     *SwingPoint `json:"swing"`
	Type      SweepType   `json:"type"`
}

// Displacement is a high-conviction directional candle.
type Displacement struct {
	Index       int       `json:"index"`
	Direction   Direction `json:"direction"`
	BodyRatio   float64   `json:"body_ratio"`
	ATRMultiple float64   `json:"atr_multiple"`
	ClosePos    float64   `json:"close_pos"` // close position within range, 0..1
}

// FVG is a three-bar imbalance zone. Valid flips to false permanently the
// first time a later candle closes through the distal boundary; it never
// flips back.
type FVG struct {
	Index     int       `json:"index"`
	Direction Direction `json:"direction"`
	Top       float64   `json:"top"`
	Bottom    float64   `json:"bottom"`
	SizeATR   float64   `json:"size_atr"`
	Valid     bool      `json:"valid"`
}

// Distal returns the boundary whose breach invalidates the gap.
func (f *FVG) Distal() float64 {
	if f.Direction == Bullish {
		return f.Bottom
	}
	return f.Top
}

// MSS is a confirmed market-structure shift. A prior sweep is optional:
// absent it the shift is a lower-scored continuation, not invalid.
type MSS struct {
	Index        int          `json:"index"`
	Direction    Direction    `json:"direction"`
	Displacement Displacement `json:"displacement"`
	BrokenSwing  *SwingPoint  `json:"broken_swing"`
	Sweep        *Sweep       `json:"sweep,omitempty"`
	Continuation bool         `json:"continuation"`
	RegimePass   bool         `json:"regime_pass"`

	// Terminal is set once internal structure re-breaks in the same
	// direction (a newer shift supersedes this one).
	Terminal bool `json:"terminal"`
}

// OrderBlock is the last opposing candle before a displacement move that
// broke structure and produced a qualifying FVG. It gates secondary
// confluence only; it is never an entry trigger itself.
type OrderBlock struct {
	Index       int         `json:"index"`
	Direction   Direction   `json:"direction"`
	FVG         *FVG        `json:"fvg"`
	BrokenSwing *SwingPoint `json:"broken_swing"`
}

// Valid reports whether the block still gates confluence; it dies with its
// FVG.
func (o *OrderBlock) Valid() bool { return o.FVG != nil && o.FVG.Valid }

// Events is everything one finalized bar produced.
type Events struct {
	Confirmed    []*SwingPoint
	Sweep        *Sweep
	Displacement *Displacement
	FVG          *FVG
	Invalidated  []*FVG
	MSS          *MSS
	OrderBlock   *OrderBlock
}
