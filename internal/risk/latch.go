package risk

import (
	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/observ"
)

// DrawdownLatch tracks cumulative realized losses in R-units since the last
// equity high watermark. Reaching the trip threshold halves sizing and
// stays halved until equity prints a new high watermark. It is a latch, not
// a per-trade recomputation, so it cannot oscillate mid-drawdown.
type DrawdownLatch struct {
	cfg config.Risk

	highWatermark float64
	drawdownR     float64
	tripped       bool
}

// NewDrawdownLatch creates a latch anchored at the starting equity.
func NewDrawdownLatch(cfg config.Risk, startingEquity float64) *DrawdownLatch {
	return &DrawdownLatch{cfg: cfg, highWatermark: startingEquity}
}

// OnRealized folds one closed trade's R-multiple and the resulting equity
// into the latch state.
func (l *DrawdownLatch) OnRealized(rMultiple, equity float64) {
	if equity > l.highWatermark {
		l.highWatermark = equity
		l.drawdownR = 0
		if l.tripped {
			l.tripped = false
			observ.IncCounter("risk_latch_resets_total", nil)
			observ.Log("risk_latch_reset", map[string]any{"high_watermark": l.highWatermark})
		}
		observ.SetGauge("risk_multiplier_current", l.Multiplier(), nil)
		return
	}

	l.drawdownR += rMultiple
	observ.SetGauge("drawdown_r_current", l.drawdownR, nil)

	if !l.tripped && l.drawdownR <= -l.cfg.DrawdownTripR {
		l.tripped = true
		observ.IncCounter("risk_latch_trips_total", nil)
		observ.Log("risk_latch_tripped", map[string]any{
			"drawdown_r": l.drawdownR,
			"multiplier": l.cfg.ReducedMultiplier,
		})
	}
	observ.SetGauge("risk_multiplier_current", l.Multiplier(), nil)
}

// Multiplier returns the sizing multiplier implied by the latch state.
func (l *DrawdownLatch) Multiplier() float64 {
	if l.tripped {
		return l.cfg.ReducedMultiplier
	}
	return 1.0
}

// Tripped reports whether the latch is currently engaged.
func (l *DrawdownLatch) Tripped() bool { return l.tripped }

// DrawdownR returns the cumulative realized drawdown in R-units since the
// last high watermark. Negative values are losses.
func (l *DrawdownLatch) DrawdownR() float64 { return l.drawdownR }

// HighWatermark returns the best equity seen so far.
func (l *DrawdownLatch) HighWatermark() float64 { return l.highWatermark }

// Restore rehydrates latch state from a checkpoint.
func (l *DrawdownLatch) Restore(highWatermark, drawdownR float64, tripped bool) {
	l.highWatermark = highWatermark
	l.drawdownR = drawdownR
	l.tripped = tripped
}
