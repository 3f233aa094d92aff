// Package hitl is the human-approval gate between sizing and execution.
// The engine never blocks indefinitely on a human: every approver call runs
// under the configured timeout and a timeout means no trade.
package hitl

import (
	"context"
	"time"

	"github.com/priyakantc/smc-replay/internal/confluence"
	"github.com/priyakantc/smc-replay/internal/observ"
	"github.com/priyakantc/smc-replay/internal/sim"
)

type Decision string

const (
	Approve  Decision = "approve"
	Escalate Decision = "approve_escalated"
	Reject   Decision = "reject"
	NewsVeto Decision = "news_veto"
)

// Request is one signal submitted for approval.
type Request struct {
	Score     confluence.Score `json:"score"`
	Order     sim.Order        `json:"order"`
	Timestamp time.Time        `json:"timestamp"`
}

// Response carries the verdict. RMultiple is only meaningful when the
// decision is Escalate.
type Response struct {
	Decision  Decision `json:"decision"`
	RMultiple float64  `json:"r_multiple,omitempty"`
}

// Approver decides one request. Implementations may block; the engine
// bounds them with Gate.
type Approver interface {
	Approve(ctx context.Context, req Request) (Response, error)
}

type ApproverFunc func(ctx context.Context, req Request) (Response, error)

func (f ApproverFunc) Approve(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// AutoApprove waves every request through, the backtest default.
var AutoApprove = ApproverFunc(func(context.Context, Request) (Response, error) {
	return Response{Decision: Approve}, nil
})

// Gate wraps an approver with the configured timeout. A timeout or error
// becomes Reject, never a stall.
type Gate struct {
	approver Approver
	timeout  time.Duration
}

func NewGate(a Approver, timeout time.Duration) *Gate {
	return &Gate{approver: a, timeout: timeout}
}

func (g *Gate) Decide(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := g.approver.Approve(ctx, req)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			observ.Warn("hitl_error", map[string]any{"order_id": req.Order.ID, "error": r.err.Error()})
			return Response{Decision: Reject}
		}
		observ.IncCounter("hitl_decisions_total", map[string]string{"decision": string(r.resp.Decision)})
		return r.resp
	case <-ctx.Done():
		observ.IncCounter("hitl_decisions_total", map[string]string{"decision": "timeout"})
		observ.Warn("hitl_timeout", map[string]any{"order_id": req.Order.ID})
		return Response{Decision: Reject}
	}
}
