package push

import (
	"context"
	"log/slog"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/workerpool"
)

// Dispatcher hands events to the worker pool, which delivers them through the registry.
// It is the notifier used when there is a single server instance and no broker.
type Dispatcher struct {
	registry *Registry
	pool     *workerpool.Pool
	logger   *slog.Logger
}

// NewDispatcher fans events out to registry on pool.
func NewDispatcher(registry *Registry, pool *workerpool.Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, pool: pool, logger: logger}
}

// Dispatch queues e for delivery. Events are dropped when the queue is full.
func (d *Dispatcher) Dispatch(e Event) {
	if !d.pool.TrySubmit(func() { d.registry.Dispatch(e) }) {
		d.logger.Warn("push queue full, event dropped", "type", e.Type)
	}
}

// MessageCreated nudges both participants.
func (d *Dispatcher) MessageCreated(_ context.Context, msg *model.MessageWithUsers) error {
	d.Dispatch(MessageEvent(msg))
	return nil
}

// MessagesRead nudges both participants.
func (d *Dispatcher) MessagesRead(_ context.Context, readerID, partnerID, updated int64) error {
	d.Dispatch(ReadEvent(readerID, partnerID, updated))
	return nil
}
