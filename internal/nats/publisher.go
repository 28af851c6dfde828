package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/push"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// EventPublisher broadcasts chat events to every server instance.
type EventPublisher struct {
	conn   Conn
	logger *slog.Logger
}

// NewEventPublisher creates a publisher on conn.
func NewEventPublisher(conn Conn, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{conn: conn, logger: logger}
}

// Publish sends e on its event subject.
func (p *EventPublisher) Publish(e push.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	subject := EventSubject(e.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published chat event", "subject", subject)
	return nil
}

// MessageCreated publishes a message event.
func (p *EventPublisher) MessageCreated(_ context.Context, msg *model.MessageWithUsers) error {
	return p.Publish(push.MessageEvent(msg))
}

// MessagesRead publishes a read event.
func (p *EventPublisher) MessagesRead(_ context.Context, readerID, partnerID, updated int64) error {
	return p.Publish(push.ReadEvent(readerID, partnerID, updated))
}
