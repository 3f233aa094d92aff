// Package regime classifies the volatility/trend regime of a finalized bar.
// It is a pure function of the bar's indicator snapshot; the rolling windows
// themselves are owned by the bar aggregator.
package regime

import (
	"github.com/priyakantc/smc-replay/internal/indicator"
)

// Regime is a trade/no-trade gate with a transition band in between.
type Regime int

const (
	NoTrade Regime = iota
	Transition
	Trending
)

func (r Regime) String() string {
	switch r {
	case NoTrade:
		return "no_trade"
	case Transition:
		return "transition"
	case Trending:
		return "trending"
	default:
		return "unknown"
	}
}

const (
	chopUpper    = 61.8
	chopLower    = 38.2
	adxThreshold = 20.0
)

// Classify maps an indicator snapshot to a regime. Choppy and directionless
// (CHOP above 61.8 with ADX below 20) blocks trading; CHOP below 38.2 is
// trending; everything else scores under standard rules.
func Classify(snap indicator.Snapshot) Regime {
	switch {
	case snap.CHOP14 > chopUpper && snap.ADX14 < adxThreshold:
		return NoTrade
	case snap.CHOP14 < chopLower:
		return Trending
	default:
		return Transition
	}
}
