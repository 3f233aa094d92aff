package risk

import (
	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/confluence"
	"github.com/priyakantc/smc-replay/internal/errs"
)

const (
	tier1RMultiple = 1.0
	tier2RMultiple = 0.5
	escalationMin  = 1.5
	escalationMax  = 2.0
)

// Sized is the output of one sizing decision.
type Sized struct {
	RMultiple    float64 // tier multiple after escalation and latch
	RiskAmount   float64 // equity units at risk
	Units        float64 // instrument units, RiskAmount / stop distance
	StopDistance float64
}

// Sizer converts a scored signal into a position size. It holds only
// configuration; equity and the latch multiplier come in per call so the
// sizer never reaches into portfolio state itself.
type Sizer struct {
	cfg config.Risk
}

func NewSizer(cfg config.Risk) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the position for one signal. escalationR is zero unless a
// human approver supplied an escalated multiple; it only applies to Tier1
// and is clamped to [1.5, 2.0]. Ignore-tier signals and non-positive stop
// distances produce no order.
func (s *Sizer) Size(score confluence.Score, equity, riskMultiplier, stopDistance, escalationR float64) (Sized, error) {
	if equity <= 0 {
		return Sized{}, errs.Invariant("sizing with non-positive equity")
	}
	if score.Tier == confluence.Ignore {
		return Sized{}, errs.SignalRejected("score below tier2 floor")
	}
	if stopDistance <= 0 {
		return Sized{}, errs.SignalRejected("non-positive stop distance")
	}

	rMult := tier2RMultiple
	if score.Tier == confluence.Tier1 {
		rMult = tier1RMultiple
		if escalationR > 0 {
			rMult = clamp(escalationR, escalationMin, escalationMax)
		}
	}
	rMult *= riskMultiplier

	baseR := equity * s.cfg.BaseRiskPct / 100.0
	riskAmt := baseR * rMult
	return Sized{
		RMultiple:    rMult,
		RiskAmount:   riskAmt,
		Units:        riskAmt / stopDistance,
		StopDistance: stopDistance,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
