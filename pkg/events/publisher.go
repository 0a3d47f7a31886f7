// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange every event is published to.
const ExchangeName = "collab.events"

// Routing keys.
const (
	InvitationCreated   = "invitation.created"
	InvitationAccepted  = "invitation.accepted"
	InvitationCancelled = "invitation.cancelled"
	MemberRemoved       = "member.removed"
)

// Event is the envelope published for every routing key.
type Event struct {
	Type       string            `json:"type"`
	ProjectID  string            `json:"project_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher publishes domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() {}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// AMQPPublisher publishes events as persistent JSON messages. A dropped
// connection is redialled on the next Publish.
type AMQPPublisher struct {
	url  string
	dial func(url string) (*amqp091.Connection, error)

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewAMQPPublisher dials url and declares the events exchange.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, dial: amqp091.Dial}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect opens a connection and channel and declares the exchange.
// Callers hold p.mu or own p exclusively.
func (p *AMQPPublisher) connect() error {
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn, p.channel = conn, ch
	return nil
}

func (p *AMQPPublisher) connectedLocked() bool {
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed() && !p.channel.IsClosed()
}

// IsConnected checks if the publisher connection is still alive
func (p *AMQPPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectedLocked()
}

// Publish publishes ev with its type as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// amqp091 channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connectedLocked() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}
	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		ev.Type,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.OccurredAt,
		},
	)
	if err != nil {
		// 通道出错后不可复用，下次发布重新连接
		p.closeLocked()
	}
	return err
}

func (p *AMQPPublisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}
