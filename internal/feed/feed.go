// Package feed supplies raw quotes to the event loop. The replay and live
// paths implement the same Source so the pipeline downstream cannot tell
// them apart.
package feed

import (
	"context"
	"io"

	"github.com/priyakantc/smc-replay/internal/tick"
)

// Source yields raw ticks in feed order. Next returns io.EOF when the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) (tick.Raw, error)
	Close() error
}

// ChannelSource adapts a live quote channel to Source. Closing the channel
// ends the stream.
type ChannelSource struct {
	ch <-chan tick.Raw
}

func NewChannelSource(ch <-chan tick.Raw) *ChannelSource {
	return &ChannelSource{ch: ch}
}

func (s *ChannelSource) Next(ctx context.Context) (tick.Raw, error) {
	select {
	case raw, ok := <-s.ch:
		if !ok {
			return tick.Raw{}, io.EOF
		}
		return raw, nil
	case <-ctx.Done():
		return tick.Raw{}, ctx.Err()
	}
}

func (s *ChannelSource) Close() error { return nil }
