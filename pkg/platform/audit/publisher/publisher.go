// Package publisher delivers audit events to a sink, synchronously or
// through a bounded async buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "intake-gateway/pkg/platform/audit"
)

// Sink receives audit events. Implementations must be safe for concurrent
// use.
type Sink interface {
	Append(ctx context.Context, event audit.Event) error
}

// Publisher emits audit events. In async mode a full buffer drops the
// event rather than blocking the request path; audit is best effort.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async delivery through a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers one event. Synchronous mode returns the sink's error;
// async mode always returns nil.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.buffer == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("audit buffer full, event dropped", "action", event.Action)
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("audit event delivery failed", "action", event.Action, "error", err)
		}
	}
}

// Close flushes the async buffer and waits for delivery to finish.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
