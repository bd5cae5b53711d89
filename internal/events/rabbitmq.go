// Package events publishes booking events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const BookingConfirmedQueue = "booking.confirmed"

var errPublisherClosed = errors.New("publisher is closed")

// RabbitMQPublisher keeps one connection and channel open for the lifetime of the process and
// redials lazily after the broker drops them.
type RabbitMQPublisher struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{
		url:    url,
		logger: logger,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *RabbitMQPublisher) PublishBookingConfirmed(ctx context.Context, event domain.BookingConfirmedEvent) error {
	msg, err := newBookingConfirmedMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPublisherClosed
	}

	if p.channel == nil || p.channel.IsClosed() {
		p.logger.Warn("rabbitmq channel is closed, reconnecting")

		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.channel.PublishWithContext(ctx,
		"",                    // default exchange
		BookingConfirmedQueue, // routing key
		false,                 // mandatory
		false,                 // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish booking %s: %w", event.BookingID, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return p.closeConn()
}

// connect must be called with mu held.
func (p *RabbitMQPublisher) connect() error {
	_ = p.closeConn()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		BookingConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", BookingConfirmedQueue, err)
	}

	p.conn = conn
	p.channel = channel

	return nil
}

func (p *RabbitMQPublisher) closeConn() error {
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil
	p.channel = nil

	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	return nil
}

func newBookingConfirmedMessage(event domain.BookingConfirmedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal booking confirmed event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.BookingID,
		Type:         BookingConfirmedQueue,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// NoopPublisher drops every event. It is used when no broker is configured and when the
// outbox relay delivers events instead of the booking service.
type NoopPublisher struct{}

func (NoopPublisher) PublishBookingConfirmed(context.Context, domain.BookingConfirmedEvent) error {
	return nil
}
