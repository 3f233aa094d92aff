// Package sim resolves orders against the replayed quote stream. Fills are
// deterministic for a given seed so two runs over the same ticks produce
// identical trade logs.
package sim

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/priyakantc/smc-replay/internal/config"
	"github.com/priyakantc/smc-replay/internal/errs"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/tick"
)

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
	Stop   OrderType = "stop"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

type OrderStatus string

const (
	Pending  OrderStatus = "pending"
	Filled   OrderStatus = "filled"
	Expired  OrderStatus = "expired"
	Rejected OrderStatus = "rejected"
)

// Order is one intended execution. Limit and stop orders carry an explicit
// trigger price; market orders resolve immediately.
type Order struct {
	ID         string      `json:"id"`
	Instrument string      `json:"instrument"`
	Type       OrderType   `json:"type"`
	Side       OrderSide   `json:"side"`
	Size       float64     `json:"size"`
	Price      float64     `json:"price,omitempty"` // trigger for limit/stop
	ScoreTotal int         `json:"score_total"`
	Status     OrderStatus `json:"status"`
	PlacedAt   time.Time   `json:"placed_at"`
}

// Fill is the terminal outcome of a filled order.
type Fill struct {
	OrderID   string    `json:"order_id"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Slippage  float64   `json:"slippage"`
	Spread    float64   `json:"spread"`
	Timestamp time.Time `json:"timestamp"`
}

// Simulator resolves orders against quotes. Spread synthesis uses its own
// seeded generator so replays reproduce byte-for-byte.
type Simulator struct {
	cfg     config.Sim
	spreads map[string]config.SpreadRange
	rng     *rand.Rand

	resting []*Order
}

func New(cfg config.Sim, spreads map[string]config.SpreadRange) *Simulator {
	return &Simulator{
		cfg:     cfg,
		spreads: spreads,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewOrder builds a pending order with a fresh id.
func NewOrder(instrument string, typ OrderType, side OrderSide, size, price float64, scoreTotal int, at time.Time) Order {
	return Order{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Type:       typ,
		Side:       side,
		Size:       size,
		Price:      price,
		ScoreTotal: scoreTotal,
		Status:     Pending,
		PlacedAt:   at,
	}
}

// Quote is the prevailing market at resolution time. When the feed carries
// no usable spread the simulator synthesizes one around the mid.
type Quote struct {
	Bid, Ask float64
	Time     time.Time
}

// QuoteFor derives the working quote from a tick, synthesizing the spread
// when the feed's own spread is absent or degenerate.
func (s *Simulator) QuoteFor(instrument string, t tick.Tick) Quote {
	if t.Ask > t.Bid {
		return Quote{Bid: t.Bid, Ask: t.Ask, Time: t.Timestamp}
	}
	mid := t.Mid()
	half := s.syntheticSpread(instrument) / 2
	return Quote{Bid: mid - half, Ask: mid + half, Time: t.Timestamp}
}

func (s *Simulator) syntheticSpread(instrument string) float64 {
	r, ok := s.spreads[instrument]
	if !ok || r.Max <= r.Min {
		return s.cfg.BrokerMinTick
	}
	return r.Min + s.rng.Float64()*(r.Max-r.Min)
}

// Submit resolves a market order immediately or parks a limit/stop order
// until a later quote triggers it. atr1m feeds the slippage model.
func (s *Simulator) Submit(o *Order, q Quote, atr1m float64) (*Fill, error) {
	if o.Size <= 0 {
		o.Status = Rejected
		return nil, errs.Invariant("order %s has non-positive size %.4f", o.ID, o.Size)
	}

	switch o.Type {
	case Market:
		f := s.fillMarket(o, q, atr1m)
		return f, nil
	case Limit, Stop:
		if o.Price <= 0 {
			o.Status = Rejected
			return nil, errs.Invariant("%s order %s missing trigger price", o.Type, o.ID)
		}
		s.resting = append(s.resting, o)
		observ.IncCounter("orders_resting_total", map[string]string{"type": string(o.Type)})
		return nil, nil
	default:
		o.Status = Rejected
		return nil, errs.Invariant("unknown order type %q", o.Type)
	}
}

func (s *Simulator) fillMarket(o *Order, q Quote, atr1m float64) *Fill {
	slip := s.slippage(atr1m)
	price := q.Ask + slip
	if o.Side == Sell {
		price = q.Bid - slip
	}
	return s.finalize(o, price, slip, q)
}

func (s *Simulator) slippage(atr1m float64) float64 {
	slip := s.cfg.SlippageATRFactor * atr1m
	if slip < s.cfg.BrokerMinTick {
		slip = s.cfg.BrokerMinTick
	}
	return slip
}

func (s *Simulator) finalize(o *Order, price, slip float64, q Quote) *Fill {
	o.Status = Filled
	observ.IncCounter("orders_filled_total", map[string]string{"type": string(o.Type), "side": string(o.Side)})
	return &Fill{
		OrderID:   o.ID,
		Price:     price,
		Size:      o.Size,
		Slippage:  slip,
		Spread:    q.Ask - q.Bid,
		Timestamp: q.Time,
	}
}

// OnQuote walks resting orders against a new quote. Limit orders need a
// strict trade-through; stop orders take the worst price touching the
// level.
func (s *Simulator) OnQuote(q Quote) []*Fill {
	var fills []*Fill
	remaining := s.resting[:0]
	for _, o := range s.resting {
		f := s.tryResting(o, q)
		if f == nil {
			remaining = append(remaining, o)
			continue
		}
		fills = append(fills, f)
	}
	s.resting = remaining
	return fills
}

func (s *Simulator) tryResting(o *Order, q Quote) *Fill {
	switch o.Type {
	case Limit:
		if o.Side == Buy && q.Ask < o.Price {
			return s.finalize(o, o.Price, 0, q)
		}
		if o.Side == Sell && q.Bid > o.Price {
			return s.finalize(o, o.Price, 0, q)
		}
	case Stop:
		if o.Side == Buy && q.Ask >= o.Price {
			price := q.Ask
			if price < o.Price {
				price = o.Price
			}
			return s.finalize(o, price, price-o.Price, q)
		}
		if o.Side == Sell && q.Bid <= o.Price {
			price := q.Bid
			if price > o.Price {
				price = o.Price
			}
			return s.finalize(o, price, o.Price-price, q)
		}
	}
	return nil
}

// ExpireAll marks every resting order Expired, used at session or data end.
func (s *Simulator) ExpireAll() []*Order {
	expired := s.resting
	for _, o := range expired {
		o.Status = Expired
		observ.IncCounter("orders_expired_total", map[string]string{"type": string(o.Type)})
	}
	s.resting = nil
	return expired
}

// Resting returns the currently parked orders.
func (s *Simulator) Resting() []*Order { return s.resting }
