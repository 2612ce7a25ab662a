package pool

import (
	"context"

	"github.com/rs/zerolog"

	"fanout/internal/stream"
	"fanout/pkg/types"
)

// defaultMaxConcurrent keeps the pool under typical same-origin HTTP
// connection limits so other requests are not starved.
const defaultMaxConcurrent = 6

// EventStream is one open generation stream, as produced by an Opener.
type EventStream interface {
	Next() (stream.Event, error)
	Close() error
}

// Opener opens a streaming generation request for one possibility.
// *stream.Client satisfies it through NewEndpointOpener.
type Opener interface {
	Open(ctx context.Context, req types.GenerateRequest) (EventStream, error)
}

type endpointOpener struct {
	c *stream.Client
}

func (o endpointOpener) Open(ctx context.Context, req types.GenerateRequest) (EventStream, error) {
	s, err := o.c.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewEndpointOpener adapts a stream.Client to the Opener interface.
func NewEndpointOpener(c *stream.Client) Opener {
	return endpointOpener{c: c}
}

// Config encapsulates all tunables for Pool construction.
type Config struct {
	// MaxConcurrent caps items in loading/streaming at once.
	// Defaults to 6.
	MaxConcurrent int
	// Opener opens the streaming request per possibility. Required.
	Opener Opener
	// Publisher receives pool events; nil drops them.
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}
