package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
instrument: EURUSD
asset_class: majors
timeframes: ["1m", "5m", "1h"]
signal_timeframe: "5m"
bias_timeframe: "1h"
asset_classes:
  majors: { l_base: 5, alpha: 0.5 }
sessions:
  - { name: London, start: 8, end: 17 }
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.EquityUSD)
	assert.Equal(t, 1.0, cfg.Risk.BaseRiskPct)
	assert.Equal(t, 5.0, cfg.Risk.DrawdownTripR)
	assert.Equal(t, 0.5, cfg.Risk.ReducedMultiplier)
	assert.Equal(t, int64(1), cfg.Sim.Seed)
	assert.Equal(t, "auto", cfg.HITL.Mode)
	assert.Equal(t, "market", cfg.EntryStyle)
	assert.Equal(t, AssetClass{LBase: 5, Alpha: 0.5}, cfg.Params())
}

func TestLoadKeepsExplicitZeroOverDefault(t *testing.T) {
	body := minimalYAML + `
sim:
  seed: 0
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Sim.Seed, "a configured zero seed must not be re-defaulted")
	assert.Equal(t, "market", cfg.EntryStyle, "untouched fields keep their defaults")
}

func TestLoadRejectsMissingAssetClassParams(t *testing.T) {
	body := `
instrument: XAUUSD
asset_class: gold
timeframes: ["1m", "5m"]
signal_timeframe: "5m"
bias_timeframe: "1m"
asset_classes:
  majors: { l_base: 5, alpha: 0.5 }
sessions:
  - { name: London, start: 8, end: 17 }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gold")
}

func TestLoadRejectsUnorderedTimeframes(t *testing.T) {
	body := `
instrument: EURUSD
asset_class: majors
timeframes: ["5m", "1m"]
signal_timeframe: "5m"
bias_timeframe: "1m"
asset_classes:
  majors: { l_base: 5, alpha: 0.5 }
sessions:
  - { name: London, start: 8, end: 17 }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestLoadRejectsNonNestingTimeframes(t *testing.T) {
	body := `
instrument: EURUSD
asset_class: majors
timeframes: ["5m", "7m"]
signal_timeframe: "5m"
bias_timeframe: "7m"
asset_classes:
  majors: { l_base: 5, alpha: 0.5 }
sessions:
  - { name: London, start: 8, end: 17 }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err, "a 7m boundary is not a 5m boundary, so bar order would break")
	assert.Contains(t, err.Error(), "multiple")
}

func TestLoadRejectsSignalTimeframeOutsideList(t *testing.T) {
	body := `
instrument: EURUSD
asset_class: majors
timeframes: ["1m", "5m"]
signal_timeframe: "15m"
bias_timeframe: "5m"
asset_classes:
  majors: { l_base: 5, alpha: 0.5 }
sessions:
  - { name: London, start: 8, end: 17 }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestWindowContainsHandlesMidnightWrap(t *testing.T) {
	w := Window{Name: "overnight", Start: 22, End: 2}
	assert.True(t, w.Contains(23))
	assert.True(t, w.Contains(0))
	assert.False(t, w.Contains(12))

	day := Window{Name: "London", Start: 8, End: 17}
	assert.True(t, day.Contains(8))
	assert.False(t, day.Contains(17))
}
