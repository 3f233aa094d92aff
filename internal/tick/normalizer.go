package tick

import (
	"time"

	"github.com/priyakantc/smc-replay/internal/observ"
)

// FlagKind classifies a data-quality event. None of these are failures; they
// are recorded per session and the stream continues.
type FlagKind string

const (
	FlagBadQuote    FlagKind = "bad_quote"    // bid<=0, ask<=0 or ask<bid
	FlagDuplicate   FlagKind = "duplicate_ts" // same timestamp, latest kept
	FlagOutOfOrder  FlagKind = "out_of_order" // timestamp regressed, dropped
	FlagDataHole    FlagKind = "data_hole"    // gap > 1s, nothing fabricated
	FlagForwardFill FlagKind = "forward_fill" // gap <= 1s bridged
)

// Flag is one recorded data-quality event.
type Flag struct {
	Kind      FlagKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
	Gap       float64   `json:"gap_seconds,omitempty"`
}

// FlagSink receives quality flags; the journal implements it.
type FlagSink interface {
	Flag(Flag)
}

// FlagSinkFunc adapts a function to FlagSink.
type FlagSinkFunc func(Flag)

func (f FlagSinkFunc) Flag(fl Flag) { f(fl) }

const maxFillGap = time.Second

// Normalizer cleans a raw quote stream into the canonical schema. It holds
// exactly one pending tick so that a later quote with an identical timestamp
// can replace it (dedupe keeps the latest); a pending tick is released when
// a strictly later quote arrives or on Flush.
type Normalizer struct {
	sink    FlagSink
	pending *Tick
	holes   int
}

func NewNormalizer(sink FlagSink) *Normalizer {
	if sink == nil {
		sink = FlagSinkFunc(func(Flag) {})
	}
	return &Normalizer{sink: sink}
}

// Holes returns the number of data holes flagged so far in this session.
func (n *Normalizer) Holes() int { return n.holes }

// Push validates one raw quote and returns zero or more normalized ticks in
// timestamp order. Invalid quotes are dropped with a flag and never
// propagate as errors.
func (n *Normalizer) Push(raw Raw) []Tick {
	if raw.Bid <= 0 || raw.Ask <= 0 || raw.Ask < raw.Bid {
		n.flag(Flag{Kind: FlagBadQuote, Timestamp: raw.Timestamp})
		return nil
	}

	incoming := Tick{
		Timestamp: raw.Timestamp.UTC(),
		Bid:       raw.Bid,
		Ask:       raw.Ask,
		BidSize:   raw.BidSize,
		AskSize:   raw.AskSize,
		Source:    raw.Source,
	}

	if n.pending == nil {
		n.pending = &incoming
		return nil
	}

	switch {
	case incoming.Timestamp.Before(n.pending.Timestamp):
		n.flag(Flag{Kind: FlagOutOfOrder, Timestamp: incoming.Timestamp})
		return nil
	case incoming.Timestamp.Equal(n.pending.Timestamp):
		n.flag(Flag{Kind: FlagDuplicate, Timestamp: incoming.Timestamp})
		n.pending = &incoming
		return nil
	}

	out := []Tick{*n.pending}
	out = append(out, n.bridge(*n.pending, incoming.Timestamp)...)
	n.pending = &incoming
	return out
}

// Flush releases the held pending tick at end of stream.
func (n *Normalizer) Flush() []Tick {
	if n.pending == nil {
		return nil
	}
	out := []Tick{*n.pending}
	n.pending = nil
	return out
}

// bridge emits forward-filled copies of last at one-second steps when the
// gap to next is at most one second; larger gaps are flagged as data holes
// without fabricating quotes.
func (n *Normalizer) bridge(last Tick, next time.Time) []Tick {
	gap := next.Sub(last.Timestamp)
	if gap <= 0 {
		return nil
	}
	if gap > maxFillGap {
		n.holes++
		n.flag(Flag{
			Kind:      FlagDataHole,
			Timestamp: last.Timestamp,
			Gap:       gap.Seconds(),
		})
		return nil
	}

	var fills []Tick
	for ts := last.Timestamp.Truncate(time.Second).Add(time.Second); ts.Before(next); ts = ts.Add(time.Second) {
		if !ts.After(last.Timestamp) {
			continue
		}
		fill := last
		fill.Timestamp = ts
		fill.ForwardFilled = true
		fills = append(fills, fill)
	}
	if len(fills) > 0 {
		n.flag(Flag{Kind: FlagForwardFill, Timestamp: last.Timestamp, Gap: gap.Seconds()})
	}
	return fills
}

func (n *Normalizer) flag(f Flag) {
	n.sink.Flag(f)
	observ.IncCounter("tick_quality_flags_total", map[string]string{"kind": string(f.Kind)})
}
