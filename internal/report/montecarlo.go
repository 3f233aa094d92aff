package report

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/priyakantc/smc-replay/internal/portfolio"
)

// MonteCarloResult holds the distribution of reshuffled outcomes.
type MonteCarloResult struct {
	Trials          int     `json:"trials"`
	MedianNetR      float64 `json:"median_net_r"`
	MaxDrawdownP50R float64 `json:"max_drawdown_p50_r"`
	MaxDrawdownP95R float64 `json:"max_drawdown_p95_r"`
	RuinProbability float64 `json:"ruin_probability"` // share of trials breaching ruinR
}

// MonteCarlo reshuffles the realized R sequence trials times and reports
// drawdown quantiles. Trials run in parallel; each derives its own
// generator from the base seed so results are reproducible regardless of
// scheduling. ruinR is the cumulative drawdown treated as account ruin.
func MonteCarlo(trades []portfolio.Trade, trials int, seed int64, ruinR float64) MonteCarloResult {
	res := MonteCarloResult{Trials: trials}
	if len(trades) == 0 || trials <= 0 {
		return res
	}

	rs := make([]float64, len(trades))
	for i, t := range trades {
		rs[i] = t.RMultiple
	}

	netRs := make([]float64, trials)
	maxDDs := make([]float64, trials)
	ruined := make([]bool, trials)

	var wg sync.WaitGroup
	for i := 0; i < trials; i++ {
		wg.Add(1)
		go func(trial int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(trial)))
			seq := make([]float64, len(rs))
			copy(seq, rs)
			rng.Shuffle(len(seq), func(a, b int) { seq[a], seq[b] = seq[b], seq[a] })

			var cum, peak, maxDD float64
			for _, r := range seq {
				cum += r
				if cum > peak {
					peak = cum
				}
				if dd := peak - cum; dd > maxDD {
					maxDD = dd
				}
			}
			netRs[trial] = cum
			maxDDs[trial] = maxDD
			ruined[trial] = maxDD >= ruinR
		}(i)
	}
	wg.Wait()

	sort.Float64s(netRs)
	sort.Float64s(maxDDs)
	res.MedianNetR = quantile(netRs, 0.50)
	res.MaxDrawdownP50R = quantile(maxDDs, 0.50)
	res.MaxDrawdownP95R = quantile(maxDDs, 0.95)

	n := 0
	for _, r := range ruined {
		if r {
			n++
		}
	}
	res.RuinProbability = float64(n) / float64(trials)
	return res
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
