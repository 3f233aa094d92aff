package structure

import (
	"math"

	"github.com/priyakantc/smc-replay/internal/bar"
	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/regime"
)

const (
	sweepReclaimATR   = 0.2
	displacementBody  = 0.6
	displacementRange = 1.5
	displacementClose = 0.7 // close in the outer 30% of the range
	fvgMinSizeATR     = 0.5
	sweepWindow       = 10 // bars an MSS may look back for its sweep
	originScan        = 10 // bars an order block may look back for its origin
	volumeGateWindow  = 20
	volumeGateFactor  = 1.25
)

// Config parameterizes one engine instance.
type Config struct {
	Params config.AssetClass
	// VolumeGate enables the optional displacement volume filter; it only
	// makes sense when the feed carries real sizes.
	VolumeGate bool
	Label      string // timeframe label for metrics
}

// Engine holds the per-timeframe structure history. It consumes finalized
// bars in order and owns every structure object it creates; consumers get
// read-only access.
type Engine struct {
	cfg    Config
	bars   []bar.Bar
	swings []*SwingPoint
	sweeps []*Sweep
	fvgs   []*FVG
	shifts []*MSS
	blocks []*OrderBlock

	confirmed map[int]bool // swing candidate indices already examined
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, confirmed: map[int]bool{}}
}

// lookbackFor computes L = round(L_base * (1 + alpha*(ATR_long/ATR_short - 1))),
// clamped to at least 1. Before the long ATR window is warm the ratio is 1.
func (e *Engine) lookbackFor(b bar.Bar) int {
	ratio := 1.0
	if b.Ind.ATR14 > 0 && b.Ind.ATR100 > 0 {
		ratio = b.Ind.ATR100 / b.Ind.ATR14
	}
	l := int(math.Round(float64(e.cfg.Params.LBase) * (1 + e.cfg.Params.Alpha*(ratio-1))))
	if l < 1 {
		l = 1
	}
	return l
}

// OnBar folds one finalized bar, in sequence, and returns the structure
// events it produced.
func (e *Engine) OnBar(b bar.Bar, reg regime.Regime) Events {
	e.bars = append(e.bars, b)
	i := len(e.bars) - 1

	var ev Events
	ev.Invalidated = e.invalidateFVGs(b)
	ev.Confirmed = e.confirmSwings(i, b)
	ev.Sweep = e.detectSweep(i, b)
	ev.Displacement = e.detectDisplacement(i, b)
	ev.FVG = e.detectFVG(i, b)
	if ev.FVG != nil {
		ev.OrderBlock = e.detectOrderBlock(i, ev.FVG)
	}
	ev.MSS = e.detectMSS(i, b, ev.Displacement, reg)
	return ev
}

// Swings returns the confirmed swing history (read-only).
func (e *Engine) Swings() []*SwingPoint { return e.swings }

// LastSwing returns the most recent confirmed swing on one side, or nil.
func (e *Engine) LastSwing(side Side) *SwingPoint { return e.lastSwing(side) }

// Shifts returns all recorded structure shifts (read-only).
func (e *Engine) Shifts() []*MSS { return e.shifts }

// ActiveBias returns the direction of the latest non-terminal MSS, or 0.
func (e *Engine) ActiveBias() Direction {
	for i := len(e.shifts) - 1; i >= 0; i-- {
		if !e.shifts[i].Terminal {
			return e.shifts[i].Direction
		}
	}
	return 0
}

// SweepWithin reports a sweep of the given direction within the last n bars.
func (e *Engine) SweepWithin(n int, dir Direction) *Sweep {
	floor := len(e.bars) - 1 - n
	for i := len(e.sweeps) - 1; i >= 0; i-- {
		s := e.sweeps[i]
		if s.Index < floor {
			return nil
		}
		if s.Direction == dir {
			return s
		}
	}
	return nil
}

// ValidFVGs returns the currently valid gaps (read-only).
func (e *Engine) ValidFVGs() []*FVG {
	var out []*FVG
	for _, f := range e.fvgs {
		if f.Valid {
			out = append(out, f)
		}
	}
	return out
}

// ActiveOrderBlock returns the most recent order block whose FVG is still
// valid and matches dir, or nil.
func (e *Engine) ActiveOrderBlock(dir Direction) *OrderBlock {
	for i := len(e.blocks) - 1; i >= 0; i-- {
		if e.blocks[i].Direction == dir && e.blocks[i].Valid() {
			return e.blocks[i]
		}
	}
	return nil
}

// InZone reports whether price sits inside any valid FVG of the given
// direction (a point-of-interest test for HTF confluence).
func (e *Engine) InZone(price float64, dir Direction) bool {
	for _, f := range e.fvgs {
		if f.Valid && f.Direction == dir && price >= f.Bottom && price <= f.Top {
			return true
		}
	}
	return false
}

// confirmSwings examines the candidate index i-L. A candidate skipped
// because L grew between bars stays unconfirmed; the delay is intrinsic and
// never shortened.
func (e *Engine) confirmSwings(i int, b bar.Bar) []*SwingPoint {
	l := e.lookbackFor(b)
	j := i - l
	if j < l || e.confirmed[j] {
		return nil
	}
	e.confirmed[j] = true

	var out []*SwingPoint
	if e.isExtreme(j, l, SwingHigh) {
		sp := &SwingPoint{Index: j, Price: e.bars[j].High, Side: SwingHigh, Lookback: l}
		e.swings = append(e.swings, sp)
		out = append(out, sp)
	}
	if e.isExtreme(j, l, SwingLow) {
		sp := &SwingPoint{Index: j, Price: e.bars[j].Low, Side: SwingLow, Lookback: l}
		e.swings = append(e.swings, sp)
		out = append(out, sp)
	}
	if len(out) > 0 {
		observ.IncCounter("structure_swings_total", map[string]string{"tf": e.cfg.Label})
	}
	return out
}

func (e *Engine) isExtreme(j, l int, side Side) bool {
	for k := j - l; k <= j+l; k++ {
		if k == j {
			continue
		}
		if side == SwingHigh && e.bars[k].High >= e.bars[j].High {
			return false
		}
		if side == SwingLow && e.bars[k].Low <= e.bars[j].Low {
			return false
		}
	}
	return true
}

func (e *Engine) lastUnswept(side Side) *SwingPoint {
	for i := len(e.swings) - 1; i >= 0; i-- {
		if e.swings[i].Side == side && !e.swings[i].Swept {
			return e.swings[i]
		}
	}
	return nil
}

func (e *Engine) lastSwing(side Side) *SwingPoint {
	for i := len(e.swings) - 1; i >= 0; i-- {
		if e.swings[i].Side == side {
			return e.swings[i]
		}
	}
	return nil
}

// detectSweep checks the current bar against the last unconsumed swing on
// each side. A bearish sweep takes the high and closes back within
// 0.2*ATR14 of it; bullish is the mirror on the low. A swing is consumed by
// its first sweep.
func (e *Engine) detectSweep(i int, b bar.Bar) *Sweep {
	tol := sweepReclaimATR * b.Ind.ATR14

	if sh := e.lastUnswept(SwingHigh); sh != nil && sh.Index < i {
		if b.High > sh.Price && b.Close <= sh.Price+tol {
			sh.Swept = true
			s := &Sweep{Index: i, Direction: Bearish, Swing: sh, Type: sweepType(b.Close <= sh.Price)}
			e.sweeps = append(e.sweeps, s)
			observ.IncCounter("structure_sweeps_total", map[string]string{"tf": e.cfg.Label, "direction": "bearish"})
			return s
		}
	}
	if sl := e.lastUnswept(SwingLow); sl != nil && sl.Index < i {
		if b.Low < sl.Price && b.Close >= sl.Price-tol {
			sl.Swept = true
			s := &Sweep{Index: i, Direction: Bullish, Swing: sl, Type: sweepType(b.Close >= sl.Price)}
			e.sweeps = append(e.sweeps, s)
			observ.IncCounter("structure_sweeps_total", map[string]string{"tf": e.cfg.Label, "direction": "bullish"})
			return s
		}
	}
	return nil
}

func sweepType(reclaimedByClose bool) SweepType {
	if reclaimedByClose {
		return SweepClose
	}
	return SweepWick
}

func (e *Engine) detectDisplacement(i int, b bar.Bar) *Displacement {
	rng := b.Range()
	if rng <= 0 || b.Ind.ATR14 <= 0 {
		return nil
	}
	bodyRatio := b.Body() / rng
	atrMult := rng / b.Ind.ATR14
	if bodyRatio < displacementBody || atrMult < displacementRange {
		return nil
	}

	var dir Direction
	closePos := (b.Close - b.Low) / rng
	switch {
	case b.Bullish() && closePos >= displacementClose:
		dir = Bullish
	case b.Bearish() && closePos <= 1-displacementClose:
		dir = Bearish
	default:
		return nil
	}

	if e.cfg.VolumeGate && !e.volumeOK(i, b) {
		return nil
	}
	return &Displacement{Index: i, Direction: dir, BodyRatio: bodyRatio, ATRMultiple: atrMult, ClosePos: closePos}
}

func (e *Engine) volumeOK(i int, b bar.Bar) bool {
	if i < volumeGateWindow {
		return true
	}
	sum := 0.0
	for k := i - volumeGateWindow; k < i; k++ {
		sum += e.bars[k].Volume
	}
	avg := sum / volumeGateWindow
	return avg <= 0 || b.Volume >= volumeGateFactor*avg
}

// detectFVG tests the 3-bar imbalance ending at i: a bullish gap opens when
// this bar's low clears the high two bars back with a bullish middle
// candle; bearish is the mirror. Gap size must be at least 0.5*ATR14.
func (e *Engine) detectFVG(i int, b bar.Bar) *FVG {
	if i < 2 || b.Ind.ATR14 <= 0 {
		return nil
	}
	first := e.bars[i-2]
	middle := e.bars[i-1]
	minSize := fvgMinSizeATR * b.Ind.ATR14

	if gap := b.Low - first.High; gap > 0 && middle.Bullish() && gap >= minSize {
		f := &FVG{Index: i, Direction: Bullish, Top: b.Low, Bottom: first.High, SizeATR: gap / b.Ind.ATR14, Valid: true}
		e.fvgs = append(e.fvgs, f)
		observ.IncCounter("structure_fvgs_total", map[string]string{"tf": e.cfg.Label, "direction": "bullish"})
		return f
	}
	if gap := first.Low - b.High; gap > 0 && middle.Bearish() && gap >= minSize {
		f := &FVG{Index: i, Direction: Bearish, Top: first.Low, Bottom: b.High, SizeATR: gap / b.Ind.ATR14, Valid: true}
		e.fvgs = append(e.fvgs, f)
		observ.IncCounter("structure_fvgs_total", map[string]string{"tf": e.cfg.Label, "direction": "bearish"})
		return f
	}
	return nil
}

// invalidateFVGs flips validity once price closes through the distal
// boundary. The transition is one-way and idempotent; a gap is never
// revived.
func (e *Engine) invalidateFVGs(b bar.Bar) []*FVG {
	var out []*FVG
	for _, f := range e.fvgs {
		if !f.Valid {
			continue
		}
		if (f.Direction == Bullish && b.Close < f.Bottom) ||
			(f.Direction == Bearish && b.Close > f.Top) {
			f.Valid = false
			out = append(out, f)
		}
	}
	return out
}

// detectOrderBlock finds the origin candle behind a fresh FVG whose break
// candle also broke an adaptive swing: the last opposing candle before the
// imbalance move.
func (e *Engine) detectOrderBlock(i int, f *FVG) *OrderBlock {
	b := e.bars[i]
	var broken *SwingPoint
	switch f.Direction {
	case Bullish:
		if sh := e.lastSwing(SwingHigh); sh != nil && sh.Index < i-2 && b.Close > sh.Price {
			broken = sh
		}
	case Bearish:
		if sl := e.lastSwing(SwingLow); sl != nil && sl.Index < i-2 && b.Close < sl.Price {
			broken = sl
		}
	}
	if broken == nil {
		return nil
	}

	for k := i - 2; k >= 0 && k >= i-originScan; k-- {
		opposing := (f.Direction == Bullish && e.bars[k].Bearish()) ||
			(f.Direction == Bearish && e.bars[k].Bullish())
		if !opposing {
			continue
		}
		ob := &OrderBlock{Index: k, Direction: f.Direction, FVG: f, BrokenSwing: broken}
		e.blocks = append(e.blocks, ob)
		observ.IncCounter("structure_order_blocks_total", map[string]string{"tf": e.cfg.Label})
		return ob
	}
	return nil
}

// detectMSS confirms a structure shift: displacement plus an internal
// structure break with the regime gate open. A preceding sweep upgrades the
// shift from continuation to reversal; its absence lowers score, not
// validity.
func (e *Engine) detectMSS(i int, b bar.Bar, disp *Displacement, reg regime.Regime) *MSS {
	if disp == nil || reg == regime.NoTrade {
		return nil
	}

	var broken *SwingPoint
	switch disp.Direction {
	case Bullish:
		if sh := e.lastSwing(SwingHigh); sh != nil && sh.Index < i && b.Close > sh.Price {
			broken = sh
		}
	case Bearish:
		if sl := e.lastSwing(SwingLow); sl != nil && sl.Index < i && b.Close < sl.Price {
			broken = sl
		}
	}
	if broken == nil {
		return nil
	}

	sweep := e.SweepWithin(sweepWindow, disp.Direction)
	m := &MSS{
		Index:        i,
		Direction:    disp.Direction,
		Displacement: *disp,
		BrokenSwing:  broken,
		Sweep:        sweep,
		Continuation: sweep == nil,
		RegimePass:   true,
	}

	// re-breaking in the same direction terminates the prior shift
	for _, prev := range e.shifts {
		if prev.Direction == m.Direction && !prev.Terminal {
			prev.Terminal = true
		}
	}
	e.shifts = append(e.shifts, m)
	observ.IncCounter("structure_mss_total", map[string]string{
		"tf": e.cfg.Label, "direction": m.Direction.String(),
	})
	return m
}
