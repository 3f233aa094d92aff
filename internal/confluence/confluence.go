// Package confluence scores a signal candidate by summing the independent
// pieces of evidence around it. Scoring is a pure function of its inputs so
// a replay always reproduces the same totals.
package confluence

import (
	"github.com/priyakantc/smc-replay/internal/structure"
)

type Tier string

const (
	Tier1  Tier = "tier1"
	Tier2  Tier = "tier2"
	Ignore Tier = "ignore"
)

const (
	tier1Floor = 85
	tier2Floor = 65
)

// Component weights. The total is hard-capped at 100.
const (
	WeightHTFBias      = 25
	WeightHTFPOI       = 15
	WeightDisplacement = 10
	WeightFVG          = 10
	WeightHTFSweep     = 15
	WeightInducement   = 10
	WeightKillzone     = 10
	WeightLowChop      = 5

	maxScore = 100
)

// Inputs is the evidence gathered for one MSS candidate. The caller
// resolves everything against higher-timeframe state; Evaluate only adds.
type Inputs struct {
	MSS *structure.MSS

	HTFBiasAligned bool // higher-timeframe structure agrees with the shift
	HTFInPOI       bool // price sits inside a higher-timeframe zone
	HTFSweep       bool // higher-timeframe liquidity was taken recently
	CleanFVG       bool // the shift left a valid imbalance behind
	Inducement     bool // a minor pool was consumed before the real move
	InKillzone     bool // bar closed inside a configured killzone window
	Chop14         float64
}

// Score is the evaluated candidate, immutable once built.
type Score struct {
	Components map[string]int      `json:"components"`
	Total      int                 `json:"total"`
	Tier       Tier                `json:"tier"`
	Direction  structure.Direction `json:"direction"`
}

// Evaluate sums the satisfied components, caps at 100, and buckets into a
// tier. Boundaries are inclusive: 85 is Tier1, 65 is Tier2, 64 ignores.
func Evaluate(in Inputs) Score {
	comp := map[string]int{}
	add := func(name string, ok bool, w int) {
		if ok {
			comp[name] = w
		}
	}

	add("htf_bias", in.HTFBiasAligned, WeightHTFBias)
	add("htf_poi", in.HTFInPOI, WeightHTFPOI)
	add("displacement", in.MSS != nil && strongDisplacement(in.MSS), WeightDisplacement)
	add("fvg", in.CleanFVG, WeightFVG)
	add("htf_sweep", in.HTFSweep, WeightHTFSweep)
	add("inducement", in.Inducement, WeightInducement)
	add("killzone", in.InKillzone, WeightKillzone)
	add("low_chop", in.Chop14 > 0 && in.Chop14 < 50, WeightLowChop)

	total := 0
	for _, w := range comp {
		total += w
	}
	if total > maxScore {
		total = maxScore
	}

	var dir structure.Direction
	if in.MSS != nil {
		dir = in.MSS.Direction
	}
	return Score{Components: comp, Total: total, Tier: tierFor(total), Direction: dir}
}

func strongDisplacement(m *structure.MSS) bool {
	return m.Displacement.ATRMultiple >= 2.0 || m.Displacement.BodyRatio >= 0.75
}

func tierFor(total int) Tier {
	switch {
	case total >= tier1Floor:
		return Tier1
	case total >= tier2Floor:
		return Tier2
	default:
		return Ignore
	}
}
