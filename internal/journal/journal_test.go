package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyakantc/smc-replay/internal/portfolio"
	"github.com/priyakantc/smc-replay/internal/sim"
	"github.com/priyakantc/smc-replay/internal/structure"
	"github.com/priyakantc/smc-replay/internal/tick"
)

func TestTradesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	order := sim.NewOrder("EURUSD", sim.Market, sim.Buy, 100000, 0, 88, now)
	require.NoError(t, w.WriteOrder(order, now))
	require.NoError(t, w.WriteFill(sim.Fill{OrderID: order.ID, Price: 1.1002, Size: 100000, Timestamp: now}, now))
	require.NoError(t, w.WriteFlag(tick.Flag{Kind: tick.FlagDataHole, Timestamp: now, Gap: 4.2}))

	trades := []portfolio.Trade{
		{
			Position: portfolio.Position{
				ID: "a", Instrument: "EURUSD", Direction: structure.Bullish,
				Units: 100000, Entry: 1.1002, Stop: 1.0982, Target: 1.1042,
				RiskAmount: 1000, OpenedAt: now,
			},
			Exit: 1.1042, PnL: 400, RMultiple: 2.0,
			Reason: portfolio.ExitTarget, ClosedAt: now.Add(30 * time.Minute),
		},
		{
			Position: portfolio.Position{
				ID: "b", Instrument: "EURUSD", Direction: structure.Bearish,
				Units: 50000, Entry: 1.1050, Stop: 1.1070, Target: 1.1010,
				RiskAmount: 500, OpenedAt: now.Add(time.Hour),
			},
			Exit: 1.1070, PnL: -100, RMultiple: -1.0,
			Reason: portfolio.ExitStop, ClosedAt: now.Add(2 * time.Hour),
		},
	}
	for _, tr := range trades {
		require.NoError(t, w.WriteTrade(tr, tr.ClosedAt))
	}

	got, err := ReadTrades(path)
	require.NoError(t, err)
	require.Len(t, got, 2, "orders, fills and flags must not surface as trades")
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, portfolio.ExitStop, got[1].Reason)
	assert.InDelta(t, -1.0, got[1].RMultiple, 1e-9)
}

func TestNewWriterCreatesFileEagerly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	_, err := NewWriter(path)
	require.NoError(t, err)

	// a run that produces nothing still leaves its journal on disk
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	trades, err := ReadTrades(path)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestReadTradesMissingJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	_, err := ReadTrades(path)
	require.Error(t, err, "a journal that was never opened does not exist")
}
