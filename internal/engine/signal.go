package engine

import (
	"context"

	"github.com/priyakantc/smc-replay/internal/bar"
	"github.com/priyakantc/smc-replay/internal/confluence"
	"github.com/priyakantc/smc-replay/internal/errs"
	"github.com/priyakantc/smc-replay/internal/hitl"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/portfolio"
	"github.com/priyakantc/smc-replay/internal/sim"
	"github.com/priyakantc/smc-replay/internal/structure"
)

// onSignal evaluates one structure shift on the signal timeframe and, if
// everything lines up, submits an entry. Rejections along the way are
// normal outcomes, logged and counted but never errors.
func (l *Loop) onSignal(b bar.Bar, ev structure.Events) error {
	mss := ev.MSS

	htf := l.structs[l.biasTF]
	htfSweep := htf.SweepWithin(htfSweepWindow, mss.Direction) != nil
	htfAligned := l.htfBias() == mss.Direction
	if !htfAligned && !htfSweep {
		l.reject("htf_disagreement", b)
		return nil
	}

	score := confluence.Evaluate(confluence.Inputs{
		MSS:            mss,
		HTFBiasAligned: htfAligned,
		HTFInPOI:       htf.InZone(b.Close, mss.Direction),
		HTFSweep:       htfSweep,
		CleanFVG:       ev.FVG != nil && ev.FVG.Valid,
		Inducement:     mss.Sweep != nil,
		InKillzone:     l.inKillzone(b),
		Chop14:         b.Ind.CHOP14,
	})
	observ.Observe("confluence_score", float64(score.Total), nil)
	if score.Tier == confluence.Ignore {
		l.reject("score_below_floor", b)
		return nil
	}

	stop, entryRef, ok := l.bracketLevels(b, mss)
	if !ok {
		l.reject("no_protected_swing", b)
		return nil
	}
	stopDist := entryRef - stop
	if mss.Direction == structure.Bearish {
		stopDist = stop - entryRef
	}

	snap := l.tracker.Snapshot()
	sized, err := l.sizer.Size(score, snap.Equity, snap.RiskMultiplier, stopDist, 0)
	if err != nil {
		if errs.IsRejection(err) {
			l.reject("sizing", b)
			return nil
		}
		return err
	}
	if err := l.tracker.CanOpen(l.cfg.Instrument, sized.RiskAmount); err != nil {
		if errs.IsRejection(err) {
			l.reject("portfolio_cap", b)
			return nil
		}
		return err
	}

	order := l.buildOrder(b, ev, mss, sized.Units, score.Total)

	resp := l.gate.Decide(context.Background(), hitl.Request{
		Score: score, Order: order, Timestamp: b.End,
	})
	switch resp.Decision {
	case hitl.Reject, hitl.NewsVeto:
		l.reject("hitl_"+string(resp.Decision), b)
		return nil
	case hitl.Escalate:
		sized, err = l.sizer.Size(score, snap.Equity, snap.RiskMultiplier, stopDist, resp.RMultiple)
		if err != nil {
			return err
		}
		order.Size = sized.Units
	}

	if err := l.journal.WriteOrder(order, b.End); err != nil {
		return err
	}

	target := entryRef + l.cfg.Risk.TakeProfitR*stopDist
	if mss.Direction == structure.Bearish {
		target = entryRef - l.cfg.Risk.TakeProfitR*stopDist
	}
	entry := pendingEntry{
		direction: mss.Direction,
		stop:      stop,
		target:    target,
		risk:      sized.RiskAmount,
		units:     sized.Units,
		score:     score.Total,
	}

	fill, err := l.sim.Submit(&order, l.lastQuote, l.atr1m)
	if err != nil {
		return err
	}
	if fill == nil {
		// resting retrace entry; resolves or expires on later quotes
		l.pendingEntries[order.ID] = entry
		return nil
	}
	return l.openFromFill(fill, entry)
}

func (l *Loop) onEntryFill(f *sim.Fill) error {
	entry, ok := l.pendingEntries[f.OrderID]
	if !ok {
		return errs.Invariant("fill for unknown order %s", f.OrderID)
	}
	delete(l.pendingEntries, f.OrderID)
	return l.openFromFill(f, entry)
}

func (l *Loop) openFromFill(f *sim.Fill, entry pendingEntry) error {
	if err := l.journal.WriteFill(*f, f.Timestamp); err != nil {
		return err
	}
	_, err := l.tracker.Open(portfolio.Position{
		Instrument: l.cfg.Instrument,
		Direction:  entry.direction,
		Units:      entry.units,
		Entry:      f.Price,
		Stop:       entry.stop,
		Target:     entry.target,
		RiskAmount: entry.risk,
		ScoreTotal: entry.score,
		Slippage:   f.Slippage,
		Spread:     f.Spread,
		OpenedAt:   f.Timestamp,
	})
	if err != nil {
		return err
	}
	observ.Log("position_opened", map[string]any{
		"direction": entry.direction.String(),
		"entry":     f.Price,
		"stop":      entry.stop,
		"target":    entry.target,
		"slippage":  f.Slippage,
	})
	return nil
}

// bracketLevels picks the protected swing behind the shift and pads it by
// the configured ATR multiple. The swept swing protects best; without one
// the last opposing signal-timeframe swing serves.
func (l *Loop) bracketLevels(b bar.Bar, mss *structure.MSS) (stop, entryRef float64, ok bool) {
	var protected float64
	if mss.Sweep != nil {
		protected = mss.Sweep.Swing.Price
	} else {
		side := structure.SwingLow
		if mss.Direction == structure.Bearish {
			side = structure.SwingHigh
		}
		sw := l.structs[l.signalTF].LastSwing(side)
		if sw == nil {
			return 0, 0, false
		}
		protected = sw.Price
	}

	pad := l.cfg.Risk.StopATRMultiple * b.Ind.ATR14
	if mss.Direction == structure.Bullish {
		return protected - pad, l.lastQuote.Ask, true
	}
	return protected + pad, l.lastQuote.Bid, true
}

func (l *Loop) buildOrder(b bar.Bar, ev structure.Events, mss *structure.MSS, units float64, scoreTotal int) sim.Order {
	side := sim.Buy
	if mss.Direction == structure.Bearish {
		side = sim.Sell
	}

	if l.cfg.EntryStyle == "retrace" && ev.FVG != nil && ev.FVG.Valid {
		mid := (ev.FVG.Top + ev.FVG.Bottom) / 2
		return sim.NewOrder(l.cfg.Instrument, sim.Limit, side, units, mid, scoreTotal, b.End)
	}
	return sim.NewOrder(l.cfg.Instrument, sim.Market, side, units, 0, scoreTotal, b.End)
}

// htfBias prefers confirmed higher-timeframe structure; before the first
// shift exists, the previous bias-timeframe candle direction stands in.
func (l *Loop) htfBias() structure.Direction {
	if d := l.structs[l.biasTF].ActiveBias(); d != 0 {
		return d
	}
	return l.biasCandle
}

func (l *Loop) inKillzone(b bar.Bar) bool {
	h := b.Start.UTC().Hour()
	for _, w := range l.cfg.Killzones {
		if w.Contains(h) {
			return true
		}
	}
	return false
}

// reject records a normal no-trade outcome.
func (l *Loop) reject(reason string, b bar.Bar) {
	observ.IncCounter("signals_rejected_total", map[string]string{"reason": reason})
	observ.Log("signal_rejected", map[string]any{"reason": reason, "bar_end": b.End})
}
