// Package portfolio owns the single mutable account state: equity, the
// high watermark, open positions, and the realized trade log. Nothing else
// in the pipeline writes to this state; readers get value snapshots.
package portfolio

import (
	"time"

	"github.com/google/uuid"

	"github.com/priyakantc/smc-replay/internal/bar"
	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/errs"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/risk"
	"github.com/priyakantc/smc-replay/internal/structure"
)

type ExitReason string

const (
	ExitStop       ExitReason = "stop"
	ExitTarget     ExitReason = "target"
	ExitSessionEnd ExitReason = "session_end"
)

// Position is one open bracket trade.
type Position struct {
	ID         string              `json:"id"`
	Instrument string              `json:"instrument"`
	Direction  structure.Direction `json:"direction"`
	Units      float64             `json:"units"`
	Entry      float64             `json:"entry"`
	Stop       float64             `json:"stop"`
	Target     float64             `json:"target"`
	RiskAmount float64             `json:"risk_amount"`
	ScoreTotal int                 `json:"score_total"`
	Slippage   float64             `json:"slippage"`
	Spread     float64             `json:"spread"`
	OpenedAt   time.Time           `json:"opened_at"`
}

// Trade is one closed position with its realized outcome.
type Trade struct {
	Position
	Exit      float64    `json:"exit"`
	PnL       float64    `json:"pnl"`
	RMultiple float64    `json:"r_multiple"`
	Reason    ExitReason `json:"reason"`
	ClosedAt  time.Time  `json:"closed_at"`
}

// Snapshot is the read-only view handed to sizing at evaluation time.
type Snapshot struct {
	Equity         float64
	HighWatermark  float64
	DrawdownR      float64
	RiskMultiplier float64
	OpenPositions  int
	OpenRisk       map[string]float64 // instrument -> equity units at risk
}

// Tracker applies fills and bar updates to the account. It is the only
// component allowed to mutate equity or the latch.
type Tracker struct {
	cfg    config.Root
	latch  *risk.DrawdownLatch
	equity float64

	open   []*Position
	closed []Trade
}

func NewTracker(cfg config.Root) *Tracker {
	return &Tracker{
		cfg:    cfg,
		latch:  risk.NewDrawdownLatch(cfg.Risk, cfg.EquityUSD),
		equity: cfg.EquityUSD,
	}
}

// Snapshot returns the current account view. The returned value never
// aliases mutable tracker state.
func (t *Tracker) Snapshot() Snapshot {
	riskByInstr := make(map[string]float64, len(t.open))
	for _, p := range t.open {
		riskByInstr[p.Instrument] += p.RiskAmount
	}
	return Snapshot{
		Equity:         t.equity,
		HighWatermark:  t.latch.HighWatermark(),
		DrawdownR:      t.latch.DrawdownR(),
		RiskMultiplier: t.latch.Multiplier(),
		OpenPositions:  len(t.open),
		OpenRisk:       riskByInstr,
	}
}

// CanOpen gates a new position against concurrency and correlation caps.
func (t *Tracker) CanOpen(instrument string, riskAmount float64) error {
	if len(t.open) >= t.cfg.Risk.MaxConcurrent {
		return errs.SignalRejected("max concurrent positions reached (%d)", t.cfg.Risk.MaxConcurrent)
	}

	correlated := riskAmount
	for _, p := range t.open {
		if t.correlation(instrument, p.Instrument) >= t.cfg.Risk.CorrelationThreshold {
			correlated += p.RiskAmount
		}
	}
	capAmt := t.equity * t.cfg.Risk.MaxCorrelatedRiskPct / 100.0
	if correlated > capAmt {
		return errs.SignalRejected("correlated risk %.2f exceeds cap %.2f for %s", correlated, capAmt, instrument)
	}
	return nil
}

func (t *Tracker) correlation(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if m, ok := t.cfg.Correlations[a]; ok {
		if v, ok := m[b]; ok {
			return v
		}
	}
	if m, ok := t.cfg.Correlations[b]; ok {
		if v, ok := m[a]; ok {
			return v
		}
	}
	return 0
}

// Open records a filled entry with its bracket levels.
func (t *Tracker) Open(p Position) (*Position, error) {
	if p.Units <= 0 || p.RiskAmount <= 0 {
		return nil, errs.Invariant("opening position with non-positive size: units=%.4f risk=%.2f", p.Units, p.RiskAmount)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := p
	t.open = append(t.open, &cp)
	observ.IncCounter("positions_opened_total", map[string]string{"instrument": p.Instrument})
	observ.SetGauge("positions_open", float64(len(t.open)), nil)
	return &cp, nil
}

// OnBar resolves open brackets against one finalized bar. Exits use the
// bid side for longs and the ask side for shorts; when both stop and
// target sit inside the bar the stop wins.
func (t *Tracker) OnBar(b bar.Bar) []Trade {
	var done []Trade
	remaining := t.open[:0]
	for _, p := range t.open {
		exit, reason, hit := resolveBracket(p, b)
		if !hit {
			remaining = append(remaining, p)
			continue
		}
		done = append(done, t.close(p, exit, reason, b.End))
	}
	t.open = remaining
	if len(done) > 0 {
		observ.SetGauge("positions_open", float64(len(t.open)), nil)
	}
	return done
}

// CloseAll force-closes everything at the bar close, used at session end.
func (t *Tracker) CloseAll(b bar.Bar) []Trade {
	var done []Trade
	for _, p := range t.open {
		price := b.BidClose
		if p.Direction == structure.Bearish {
			price = b.AskClose
		}
		done = append(done, t.close(p, price, ExitSessionEnd, b.End))
	}
	t.open = t.open[:0]
	if len(done) > 0 {
		observ.SetGauge("positions_open", 0, nil)
	}
	return done
}

func (t *Tracker) close(p *Position, exit float64, reason ExitReason, at time.Time) Trade {
	pnl := (exit - p.Entry) * p.Units
	if p.Direction == structure.Bearish {
		pnl = (p.Entry - exit) * p.Units
	}
	rMult := pnl / p.RiskAmount

	t.equity += pnl
	t.latch.OnRealized(rMult, t.equity)

	tr := Trade{Position: *p, Exit: exit, PnL: pnl, RMultiple: rMult, Reason: reason, ClosedAt: at}
	t.closed = append(t.closed, tr)

	observ.IncCounter("trades_closed_total", map[string]string{
		"instrument": p.Instrument, "reason": string(reason),
	})
	observ.SetGauge("equity_current", t.equity, nil)
	return tr
}

// resolveBracket tests one bar against a position's stop and target. A gap
// through the stop fills at the bar extreme, the worst price actually
// available.
func resolveBracket(p *Position, b bar.Bar) (float64, ExitReason, bool) {
	if p.Direction == structure.Bullish {
		if b.BidLow <= p.Stop {
			exit := p.Stop
			if b.BidHigh < p.Stop {
				exit = b.BidHigh
			}
			return exit, ExitStop, true
		}
		if b.BidHigh >= p.Target {
			return p.Target, ExitTarget, true
		}
		return 0, "", false
	}

	if b.AskHigh >= p.Stop {
		exit := p.Stop
		if b.AskLow > p.Stop {
			exit = b.AskLow
		}
		return exit, ExitStop, true
	}
	if b.AskLow <= p.Target {
		return p.Target, ExitTarget, true
	}
	return 0, "", false
}

// Equity returns the current account equity.
func (t *Tracker) Equity() float64 { return t.equity }

// Open positions, read-only copies.
func (t *Tracker) OpenPositions() []Position {
	out := make([]Position, len(t.open))
	for i, p := range t.open {
		out[i] = *p
	}
	return out
}

// Closed returns the realized trade log.
func (t *Tracker) Closed() []Trade { return t.closed }
