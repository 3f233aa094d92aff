// Package report computes post-hoc statistics over a run's closed trades.
package report

import (
	"math"

	"github.com/priyakantc/smc-replay/internal/portfolio"
)

// Summary aggregates one trade sequence.
type Summary struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	NetR         float64 `json:"net_r"`
	ExpectancyR  float64 `json:"expectancy_r"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdownR float64 `json:"max_drawdown_r"`

	// MonthlyR keys are "2006-01" on the trade close time.
	MonthlyR map[string]float64 `json:"monthly_r,omitempty"`
}

// Summarize folds a trade log in sequence order. MaxDrawdownR is the
// deepest peak-to-trough excursion of the cumulative R curve.
func Summarize(trades []portfolio.Trade) Summary {
	var s Summary
	s.Trades = len(trades)
	if s.Trades == 0 {
		return s
	}

	s.MonthlyR = make(map[string]float64)
	var grossWin, grossLoss, cum, peak, maxDD float64
	for _, t := range trades {
		r := t.RMultiple
		s.NetR += r
		s.MonthlyR[t.ClosedAt.Format("2006-01")] += r
		if r > 0 {
			s.Wins++
			grossWin += r
		} else {
			s.Losses++
			grossLoss += -r
		}
		cum += r
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.ExpectancyR = s.NetR / float64(s.Trades)
	s.MaxDrawdownR = maxDD
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
