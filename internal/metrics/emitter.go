package metrics

import (
	"context"

	"github.com/hivechat/swarm/internal/broadcast"
)

// Emitter decorates a broadcast emitter, counting every published event by
// name before forwarding it.
type Emitter struct {
	next      broadcast.Emitter
	collector *Collector
}

var _ broadcast.Emitter = (*Emitter)(nil)

// WrapEmitter instruments next with the collector.
func WrapEmitter(next broadcast.Emitter, collector *Collector) *Emitter {
	return &Emitter{next: next, collector: collector}
}

func (e *Emitter) Emit(ctx context.Context, event string, payload any) {
	e.collector.CountEvent(event)
	e.next.Emit(ctx, event, payload)
}

func (e *Emitter) Ping(ctx context.Context) error {
	return e.next.Ping(ctx)
}

func (e *Emitter) Close() error {
	return e.next.Close()
}
