package confluence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/priyakantc/smc-replay/internal/structure"
)

func strongMSS(dir structure.Direction) *structure.MSS {
	return &structure.MSS{
		Direction: dir,
		Displacement: structure.Displacement{
			Direction: dir, BodyRatio: 0.8, ATRMultiple: 2.1, ClosePos: 0.9,
		},
		Sweep: &structure.Sweep{Direction: dir},
	}
}

func TestFullHouseCapsAtHundred(t *testing.T) {
	s := Evaluate(Inputs{
		MSS:            strongMSS(structure.Bullish),
		HTFBiasAligned: true,
		HTFInPOI:       true,
		HTFSweep:       true,
		CleanFVG:       true,
		Inducement:     true,
		InKillzone:     true,
		Chop14:         35,
	})
	assert.Equal(t, 100, s.Total, "25+15+10+10+15+10+10+5 sums to exactly 100")
	assert.Equal(t, Tier1, s.Tier)
	assert.Equal(t, structure.Bullish, s.Direction)
}

func TestTotalAlwaysBounded(t *testing.T) {
	s := Evaluate(Inputs{})
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, Ignore, s.Tier)

	// every subset stays within [0,100]
	for mask := 0; mask < 1<<7; mask++ {
		in := Inputs{MSS: strongMSS(structure.Bearish)}
		in.HTFBiasAligned = mask&1 != 0
		in.HTFInPOI = mask&2 != 0
		in.HTFSweep = mask&4 != 0
		in.CleanFVG = mask&8 != 0
		in.Inducement = mask&16 != 0
		in.InKillzone = mask&32 != 0
		if mask&64 != 0 {
			in.Chop14 = 35
		}
		got := Evaluate(in)
		assert.GreaterOrEqual(t, got.Total, 0)
		assert.LessOrEqual(t, got.Total, 100)
	}
}

func TestTierBoundariesExact(t *testing.T) {
	cases := []struct {
		total int
		want  Tier
	}{
		{64, Ignore},
		{65, Tier2},
		{84, Tier2},
		{85, Tier1},
		{100, Tier1},
		{0, Ignore},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tierFor(tc.total), "total %d", tc.total)
	}
}

func TestWeakDisplacementScoresNothingForStrength(t *testing.T) {
	weak := strongMSS(structure.Bullish)
	weak.Displacement.BodyRatio = 0.62
	weak.Displacement.ATRMultiple = 1.55

	s := Evaluate(Inputs{MSS: weak, HTFBiasAligned: true})
	assert.NotContains(t, s.Components, "displacement")
	assert.Equal(t, WeightHTFBias, s.Total)
}

func TestChopComponentNeedsWarmValueBelowFifty(t *testing.T) {
	s := Evaluate(Inputs{MSS: strongMSS(structure.Bullish), Chop14: 0})
	assert.NotContains(t, s.Components, "low_chop", "cold CHOP must not score")

	s = Evaluate(Inputs{MSS: strongMSS(structure.Bullish), Chop14: 49.9})
	assert.Contains(t, s.Components, "low_chop")

	s = Evaluate(Inputs{MSS: strongMSS(structure.Bullish), Chop14: 50})
	assert.NotContains(t, s.Components, "low_chop")
}

func TestDeterministic(t *testing.T) {
	in := Inputs{
		MSS:            strongMSS(structure.Bearish),
		HTFBiasAligned: true,
		HTFSweep:       true,
		InKillzone:     true,
		Chop14:         42,
	}
	first := Evaluate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(in))
	}
}
