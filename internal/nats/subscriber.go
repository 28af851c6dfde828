package nats

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"libraryconnect.chat/internal/push"
)

// EventHandler receives decoded events. push.Dispatcher implements it.
type EventHandler interface {
	Dispatch(e push.Event)
}

// EventSubscriber feeds broker events to the local push dispatcher.
type EventSubscriber struct {
	nc           *nats.Conn
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
}

// NewEventSubscriber creates a subscriber that hands events to handler.
func NewEventSubscriber(nc *nats.Conn, handler EventHandler, logger *slog.Logger) *EventSubscriber {
	return &EventSubscriber{nc: nc, handler: handler, logger: logger}
}

// Start subscribes to every chat event subject.
func (s *EventSubscriber) Start() error {
	sub, err := s.nc.Subscribe(SubjectEventAll, func(msg *nats.Msg) {
		s.handle(msg.Data)
	})
	if err != nil {
		return err
	}
	s.subscription = sub
	s.logger.Info("nats event subscriber started", "subject", SubjectEventAll)
	return nil
}

func (s *EventSubscriber) handle(data []byte) {
	var e push.Event
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Warn("discarding malformed chat event", "error", err)
		return
	}
	s.handler.Dispatch(e)
}

// Stop unsubscribes.
func (s *EventSubscriber) Stop() {
	if s.subscription == nil {
		return
	}
	if err := s.subscription.Unsubscribe(); err != nil {
		s.logger.Warn("nats unsubscribe failed", "error", err)
	}
}
