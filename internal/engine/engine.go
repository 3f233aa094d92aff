// Package engine runs the single-threaded event loop for one instrument
// stream. Backtest and live share this code path; the only difference is
// the feed source and the pacing limiter.
package engine

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/priyakantc/smc-replay/internal/bar"
	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/errs"
	"github.com/priyakantc/smc-replay/internal/feed"
	"github.com/priyakantc/smc-replay/internal/hitl"
	"github.com/priyakantc/smc-replay/internal/journal"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/portfolio"
	"github.com/priyakantc/smc-replay/internal/regime"
	"github.com/priyakantc/smc-replay/internal/risk"
	"github.com/priyakantc/smc-replay/internal/sim"
	"github.com/priyakantc/smc-replay/internal/structure"
	"github.com/priyakantc/smc-replay/internal/tick"
)

const htfSweepWindow = 20 // bias-timeframe bars a sweep stays relevant

// Options tune one loop run.
type Options struct {
	// Live throttles intake to real time pacing; backtests run unpaced.
	Live     bool
	Approver hitl.Approver
}

// Loop owns every pipeline component for one instrument. All state
// mutation happens on the caller's goroutine; time only advances here.
type Loop struct {
	cfg  config.Root
	norm *tick.Normalizer
	agg  *bar.Aggregator

	frames   []time.Duration
	signalTF time.Duration
	biasTF   time.Duration
	structs  map[time.Duration]*structure.Engine

	sizer   *risk.Sizer
	tracker *portfolio.Tracker
	sim     *sim.Simulator
	gate    *hitl.Gate
	journal *journal.Writer
	limiter *rate.Limiter

	lastTick    time.Time
	resumeUntil time.Time
	lastQuote   sim.Quote
	atr1m       float64
	session     string
	biasCandle  structure.Direction
	ckptVer     int

	// entries waiting on a resting order's fill, keyed by order id
	pendingEntries map[string]pendingEntry
}

type pendingEntry struct {
	direction structure.Direction
	stop      float64
	target    float64
	risk      float64
	units     float64
	score     int
}

func NewLoop(cfg config.Root, opts Options) (*Loop, error) {
	frames, err := cfg.ParsedTimeframes()
	if err != nil {
		return nil, errs.Config("timeframes: %v", err)
	}
	signalTF, err := time.ParseDuration(cfg.SignalTimeframe)
	if err != nil {
		return nil, errs.Config("signal timeframe: %v", err)
	}
	biasTF, err := time.ParseDuration(cfg.BiasTimeframe)
	if err != nil {
		return nil, errs.Config("bias timeframe: %v", err)
	}

	jw, err := journal.NewWriter(cfg.JournalPath)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:            cfg,
		agg:            bar.NewAggregator(frames, cfg.Sessions),
		frames:         frames,
		signalTF:       signalTF,
		biasTF:         biasTF,
		structs:        make(map[time.Duration]*structure.Engine, len(frames)),
		sizer:          risk.NewSizer(cfg.Risk),
		tracker:        portfolio.NewTracker(cfg),
		sim:            sim.New(cfg.Sim, cfg.Spreads),
		journal:        jw,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		pendingEntries: make(map[string]pendingEntry),
	}
	l.norm = tick.NewNormalizer(tick.FlagSinkFunc(func(f tick.Flag) {
		if err := jw.WriteFlag(f); err != nil {
			observ.Warn("journal_flag_failed", map[string]any{"error": err.Error()})
		}
	}))
	for _, f := range frames {
		l.structs[f] = structure.NewEngine(structure.Config{
			Params:     cfg.Params(),
			VolumeGate: cfg.VolumeGate,
			Label:      f.String(),
		})
	}

	approver := opts.Approver
	if approver == nil || cfg.HITL.Mode == "auto" {
		approver = hitl.AutoApprove
	}
	l.gate = hitl.NewGate(approver, time.Duration(cfg.HITL.TimeoutMs)*time.Millisecond)

	if opts.Live {
		// ticks rarely arrive faster than a few hundred per second; a
		// generous cap just guards against a misbehaving feed
		l.limiter = rate.NewLimiter(rate.Limit(1000), 100)
	}

	if cfg.CheckpointPath != "" {
		cp, err := l.tracker.RestoreCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			l.lastTick = cp.LastTick
			l.resumeUntil = cp.LastTick
			l.ckptVer = cp.Version
			observ.Log("checkpoint_restored", map[string]any{
				"equity": cp.Equity, "last_tick": cp.LastTick,
			})
		}
	}
	return l, nil
}

// Tracker exposes the account for reporting after a run.
func (l *Loop) Tracker() *portfolio.Tracker { return l.tracker }

// Run drains the source to completion or context cancellation.
func (l *Loop) Run(ctx context.Context, src feed.Source) error {
	for {
		raw, err := src.Next(ctx)
		if err == io.EOF {
			return l.finish()
		}
		if err != nil {
			return err
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		// resume skips everything at or before the checkpointed tick
		if !l.resumeUntil.IsZero() && !raw.Timestamp.After(l.resumeUntil) {
			continue
		}
		for _, t := range l.norm.Push(raw) {
			if err := l.onTick(t); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) finish() error {
	for _, t := range l.norm.Flush() {
		if err := l.onTick(t); err != nil {
			return err
		}
	}
	var last bar.Bar
	for _, b := range l.agg.Flush() {
		if err := l.onBar(b); err != nil {
			return err
		}
		last = b
	}
	l.expireResting()
	if last.TickCount > 0 {
		for _, tr := range l.tracker.CloseAll(last) {
			if err := l.journal.WriteTrade(tr, tr.ClosedAt); err != nil {
				return err
			}
		}
	}
	observ.Log("run_complete", map[string]any{
		"equity": l.tracker.Equity(), "trades": len(l.tracker.Closed()),
	})
	return l.checkpoint()
}

func (l *Loop) onTick(t tick.Tick) error {
	if t.Timestamp.Before(l.lastTick) {
		return errs.Invariant("tick at %s reached the loop after %s", t.Timestamp, l.lastTick)
	}
	l.lastTick = t.Timestamp
	l.lastQuote = l.sim.QuoteFor(l.cfg.Instrument, t)

	for _, f := range l.sim.OnQuote(l.lastQuote) {
		if err := l.onEntryFill(f); err != nil {
			return err
		}
	}

	for _, b := range l.agg.Apply(t) {
		if err := l.onBar(b); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) onBar(b bar.Bar) error {
	if b.End.After(l.lastTick.Add(b.Timeframe)) {
		return errs.Invariant("bar %s/%s finalized past the clock at %s", b.Timeframe, b.End, l.lastTick)
	}
	reg := regime.Classify(b.Ind)
	ev := l.structs[b.Timeframe].OnBar(b, reg)

	if b.Timeframe == l.frames[0] {
		l.atr1m = b.Ind.ATR14
		if l.session != "" && b.Session != l.session {
			l.expireResting()
		}
		l.session = b.Session

		for _, tr := range l.tracker.OnBar(b) {
			if err := l.journal.WriteTrade(tr, tr.ClosedAt); err != nil {
				return err
			}
		}
		if err := l.checkpoint(); err != nil {
			return err
		}
	}

	if b.Timeframe == l.biasTF {
		switch {
		case b.Bullish():
			l.biasCandle = structure.Bullish
		case b.Bearish():
			l.biasCandle = structure.Bearish
		}
	}

	if b.Timeframe == l.signalTF && ev.MSS != nil {
		if err := l.onSignal(b, ev); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) expireResting() {
	for _, o := range l.sim.ExpireAll() {
		delete(l.pendingEntries, o.ID)
		if err := l.journal.WriteOrder(*o, l.lastTick); err != nil {
			observ.Warn("journal_order_failed", map[string]any{"error": err.Error()})
		}
	}
}

func (l *Loop) checkpoint() error {
	if l.cfg.CheckpointPath == "" {
		return nil
	}
	l.ckptVer++
	return l.tracker.SaveCheckpoint(l.cfg.CheckpointPath, l.lastTick, l.ckptVer)
}
