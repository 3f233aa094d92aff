package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/errs"
	"github.com/priyakantc/smc-replay/internal/tick"
)

func tickAt(mid float64) tick.Tick {
	return tick.Tick{Timestamp: at(0, 0), Bid: mid, Ask: mid}
}

func tickWith(bid, ask float64) tick.Tick {
	return tick.Tick{Timestamp: at(0, 0), Bid: bid, Ask: ask}
}

func simCfg() config.Sim {
	return config.Sim{Seed: 1, BrokerMinTick: 0.00001, SlippageATRFactor: 0.1}
}

func eurusdSpreads() map[string]config.SpreadRange {
	return map[string]config.SpreadRange{
		"EURUSD": {Min: 0.00008, Max: 0.00012},
	}
}

func at(min, sec int) time.Time {
	return time.Date(2024, 3, 1, 10, min, sec, 0, time.UTC)
}

func TestMarketBuyFillsAtAskPlusSlippage(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())
	q := Quote{Bid: 1.1000, Ask: 1.1002, Time: at(0, 0)}

	o := NewOrder("EURUSD", Market, Buy, 100000, 0, 90, at(0, 0))
	fill, err := s.Submit(&o, q, 0.0010)
	require.NoError(t, err)
	require.NotNil(t, fill)

	wantSlip := 0.0001 // 0.1 * ATR_1m dominates the broker tick
	assert.InDelta(t, 1.1002+wantSlip, fill.Price, 1e-9)
	assert.InDelta(t, wantSlip, fill.Slippage, 1e-9)
	assert.Equal(t, Filled, o.Status)
}

func TestMarketSellFillsAtBidMinusSlippage(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())
	q := Quote{Bid: 1.1000, Ask: 1.1002, Time: at(0, 0)}

	o := NewOrder("EURUSD", Market, Sell, 100000, 0, 90, at(0, 0))
	fill, err := s.Submit(&o, q, 0)
	require.NoError(t, err)

	// with a cold ATR the broker minimum tick floors the slippage
	assert.InDelta(t, 1.1000-0.00001, fill.Price, 1e-12)
}

func TestLimitBuyNeedsTradeThrough(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())

	o := NewOrder("EURUSD", Limit, Buy, 100000, 1.10400, 90, at(0, 0))
	fill, err := s.Submit(&o, Quote{Bid: 1.10448, Ask: 1.10450, Time: at(0, 0)}, 0.0010)
	require.NoError(t, err)
	assert.Nil(t, fill, "limit away from the market must rest")
	assert.Equal(t, Pending, o.Status)

	// touching the level exactly is not a trade-through
	assert.Empty(t, s.OnQuote(Quote{Bid: 1.10398, Ask: 1.10400, Time: at(1, 0)}))

	fills := s.OnQuote(Quote{Bid: 1.10395, Ask: 1.10399, Time: at(2, 0)})
	require.Len(t, fills, 1)
	assert.InDelta(t, 1.10400, fills[0].Price, 1e-9, "limit fills at its own price")
	assert.Equal(t, Filled, o.Status)
}

func TestLimitExpiresWithoutTradeThrough(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())

	// market at 1.10450, resting buy at 1.10400, price never trades below
	o := NewOrder("EURUSD", Limit, Buy, 100000, 1.10400, 90, at(0, 0))
	_, err := s.Submit(&o, Quote{Bid: 1.10448, Ask: 1.10450, Time: at(0, 0)}, 0.0010)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		assert.Empty(t, s.OnQuote(Quote{Bid: 1.10440, Ask: 1.10442, Time: at(i, 0)}))
	}

	expired := s.ExpireAll()
	require.Len(t, expired, 1)
	assert.Equal(t, Expired, expired[0].Status)
	assert.Empty(t, s.Resting())
}

func TestStopBuyFillsAtWorstTouch(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())

	o := NewOrder("EURUSD", Stop, Buy, 100000, 1.10500, 90, at(0, 0))
	_, err := s.Submit(&o, Quote{Bid: 1.10448, Ask: 1.10450, Time: at(0, 0)}, 0.0010)
	require.NoError(t, err)

	// gap over the stop: fills at the worse ask, not the stop level
	fills := s.OnQuote(Quote{Bid: 1.10518, Ask: 1.10520, Time: at(1, 0)})
	require.Len(t, fills, 1)
	assert.InDelta(t, 1.10520, fills[0].Price, 1e-9)
	assert.InDelta(t, 0.00020, fills[0].Slippage, 1e-9)
}

func TestNegativeSizeIsFatal(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())
	o := NewOrder("EURUSD", Market, Buy, -5, 0, 90, at(0, 0))
	_, err := s.Submit(&o, Quote{Bid: 1.1, Ask: 1.1002, Time: at(0, 0)}, 0)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, Rejected, o.Status)
}

func TestSyntheticSpreadDeterministicPerSeed(t *testing.T) {
	tick := func(sim *Simulator) Quote {
		// degenerate feed spread forces synthesis
		return sim.QuoteFor("EURUSD", tickAt(1.1001))
	}

	a := New(simCfg(), eurusdSpreads())
	b := New(simCfg(), eurusdSpreads())
	for i := 0; i < 50; i++ {
		qa, qb := tick(a), tick(b)
		assert.Equal(t, qa, qb, "same seed must synthesize the same spread sequence")
		spread := qa.Ask - qa.Bid
		assert.GreaterOrEqual(t, spread, 0.00008-1e-12)
		assert.LessOrEqual(t, spread, 0.00012+1e-12)
	}

	other := New(config.Sim{Seed: 2, BrokerMinTick: 0.00001, SlippageATRFactor: 0.1}, eurusdSpreads())
	diverged := false
	for i := 0; i < 50; i++ {
		if tick(a) != tick(other) {
			diverged = true
		}
	}
	assert.True(t, diverged, "different seeds should produce different spreads")
}

func TestObservedSpreadPassesThrough(t *testing.T) {
	s := New(simCfg(), eurusdSpreads())
	q := s.QuoteFor("EURUSD", tickWith(1.1000, 1.1002))
	assert.Equal(t, 1.1000, q.Bid)
	assert.Equal(t, 1.1002, q.Ask)
}
