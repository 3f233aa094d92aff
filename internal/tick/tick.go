// Package tick defines the canonical tick schema and the normalizer that
// turns raw feed quotes into it: validation drops, duplicate-timestamp
// resolution, short-gap forward fills and data-hole flagging.
package tick

import (
	"time"
)

// Source identifies the upstream feed a tick came from.
type Source string

const (
	SourceDukascopy Source = "DUKASCOPY"
	SourceIB        Source = "IB"
)

// Raw is an unvalidated quote as delivered by a feed adapter.
type Raw struct {
	Timestamp time.Time `json:"timestamp_utc"`
	Bid       float64   `json:"bid_price"`
	Ask       float64   `json:"ask_price"`
	BidSize   float64   `json:"bid_size,omitempty"`
	AskSize   float64   `json:"ask_size,omitempty"`
	Source    Source    `json:"source"`
}

// Tick is a normalized quote. Timestamps are strictly increasing within a
// stream once emitted by the Normalizer; ticks are never mutated.
type Tick struct {
	Timestamp     time.Time
	Bid           float64
	Ask           float64
	BidSize       float64
	AskSize       float64
	Source        Source
	ForwardFilled bool
}

// Mid returns the mid price (bid+ask)/2.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Spread returns the quoted spread.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }
