package regime

import (
	"testing"

	"github.com/priyakantc/smc-replay/internal/indicator"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		chop float64
		adx  float64
		want Regime
	}{
		{"choppy and weak", 70, 15, NoTrade},
		{"choppy boundary not crossed", 61.8, 15, Transition},
		{"choppy but strong adx", 70, 25, Transition},
		{"clean trend", 30, 30, Trending},
		{"trend boundary not crossed", 38.2, 30, Transition},
		{"middle ground", 50, 22, Transition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(indicator.Snapshot{CHOP14: tc.chop, ADX14: tc.adx})
			if got != tc.want {
				t.Fatalf("Classify(chop=%v adx=%v) = %v, want %v", tc.chop, tc.adx, got, tc.want)
			}
		})
	}
}
