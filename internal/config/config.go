package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AssetClass holds the adaptive-lookback parameters for one asset class.
type AssetClass struct {
	LBase int     `yaml:"l_base" validate:"gte=1"`
	Alpha float64 `yaml:"alpha" validate:"gte=0"`
}

// Window is a UTC hour window [Start, End). End may be <= Start to wrap
// midnight.
type Window struct {
	Name  string `yaml:"name" validate:"required"`
	Start int    `yaml:"start" validate:"gte=0,lte=23"`
	End   int    `yaml:"end" validate:"gte=0,lte=24"`
}

// Contains reports whether hour (UTC) falls inside the window.
func (w Window) Contains(hour int) bool {
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// SpreadRange is the synthetic spread band for one instrument, in price
// units. Used only when ticks carry no observed bid/ask.
type SpreadRange struct {
	Min float64 `yaml:"min" validate:"gt=0"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

type Risk struct {
	BaseRiskPct           float64 `yaml:"base_risk_pct" default:"1.0" validate:"gt=0,lte=5"`
	DrawdownTripR         float64 `yaml:"drawdown_trip_r" default:"5.0" validate:"gt=0"`
	ReducedMultiplier     float64 `yaml:"reduced_multiplier" default:"0.5" validate:"gt=0,lte=1"`
	MaxConcurrent         int     `yaml:"max_concurrent_positions" default:"3" validate:"gte=1"`
	MaxCorrelatedRiskPct  float64 `yaml:"max_correlated_risk_pct" default:"2.0" validate:"gt=0"`
	CorrelationThreshold  float64 `yaml:"correlation_threshold" default:"0.75" validate:"gt=0,lte=1"`
	StopATRMultiple       float64 `yaml:"stop_atr_multiple" default:"0.5" validate:"gt=0"`
	TakeProfitR           float64 `yaml:"take_profit_r" default:"2.0" validate:"gt=0"`
}

type Sim struct {
	Seed              int64   `yaml:"seed" default:"1"`
	BrokerMinTick     float64 `yaml:"broker_min_tick" default:"0.00001" validate:"gt=0"`
	SlippageATRFactor float64 `yaml:"slippage_atr_factor" default:"0.1" validate:"gte=0"`
}

type HITL struct {
	// Mode auto approves every signal; mode gated consults the approver
	// with a timeout, treating timeout as Reject.
	Mode      string `yaml:"mode" default:"auto" validate:"oneof=auto gated"`
	TimeoutMs int    `yaml:"timeout_ms" default:"5000" validate:"gt=0"`
}

// Root is the full engine configuration for one instrument stream.
type Root struct {
	Instrument string   `yaml:"instrument" validate:"required"`
	AssetClass string   `yaml:"asset_class" validate:"required"`
	EquityUSD  float64  `yaml:"equity_usd" default:"100000" validate:"gt=0"`
	Timeframes []string `yaml:"timeframes" validate:"min=2"`

	// SignalTimeframe is the LTF that produces entries; BiasTimeframe is
	// the HTF that supplies bias, points of interest and sweeps.
	SignalTimeframe string `yaml:"signal_timeframe" validate:"required"`
	BiasTimeframe   string `yaml:"bias_timeframe" validate:"required"`

	// EntryStyle market enters at the close of the shift candle; retrace
	// rests a limit at the imbalance midpoint and lets it expire with the
	// session if price never returns.
	EntryStyle string `yaml:"entry_style" default:"market" validate:"oneof=market retrace"`

	// VolumeGate filters displacement on tick volume. Only worth enabling
	// when the feed carries sizes; a sizeless feed passes the gate anyway.
	VolumeGate bool `yaml:"volume_gate"`

	AssetClasses map[string]AssetClass  `yaml:"asset_classes" validate:"required,dive"`
	Sessions     []Window               `yaml:"sessions" validate:"min=1,dive"`
	Killzones    []Window               `yaml:"killzones" validate:"dive"`
	Spreads      map[string]SpreadRange `yaml:"spreads" validate:"dive"`
	Correlations map[string]map[string]float64 `yaml:"correlations"`

	Risk Risk `yaml:"risk"`
	Sim  Sim  `yaml:"sim"`
	HITL HITL `yaml:"hitl"`

	CheckpointPath string `yaml:"checkpoint_path"`
	JournalPath    string `yaml:"journal_path" default:"data/journal.jsonl"`
}

// Params returns the adaptive-lookback parameters for the configured asset
// class.
func (r Root) Params() AssetClass {
	return r.AssetClasses[r.AssetClass]
}

// ParsedTimeframes returns the configured timeframes as durations, sorted
// ascending by the caller's convention (config order must be ascending; Load
// enforces it).
func (r Root) ParsedTimeframes() ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(r.Timeframes))
	for _, s := range r.Timeframes {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("timeframe %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

var validate = validator.New()

// Load reads, defaults and validates a config file. Any failure here is a
// ConfigurationError: the engine must not process a single tick with an
// incomplete config.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	// defaults first, then unmarshal on top, so an explicit zero in the
	// file stays a zero instead of being re-defaulted
	if err := defaults.Set(&c); err != nil {
		return c, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("validate config: %w", err)
	}
	if err := c.check(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Root) check() error {
	if _, ok := c.AssetClasses[c.AssetClass]; !ok {
		return fmt.Errorf("asset class %q has no parameters", c.AssetClass)
	}
	tfs, err := c.ParsedTimeframes()
	if err != nil {
		return err
	}
	for i := 1; i < len(tfs); i++ {
		if tfs[i] <= tfs[i-1] {
			return fmt.Errorf("timeframes must be strictly ascending, got %s after %s",
				c.Timeframes[i], c.Timeframes[i-1])
		}
		// bar emission order relies on every boundary of a higher frame
		// also being a boundary of the frame below it
		if tfs[i]%tfs[i-1] != 0 {
			return fmt.Errorf("timeframe %s must be a multiple of %s",
				c.Timeframes[i], c.Timeframes[i-1])
		}
	}
	if !contains(c.Timeframes, c.SignalTimeframe) {
		return fmt.Errorf("signal timeframe %q not in timeframes", c.SignalTimeframe)
	}
	if !contains(c.Timeframes, c.BiasTimeframe) {
		return fmt.Errorf("bias timeframe %q not in timeframes", c.BiasTimeframe)
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
