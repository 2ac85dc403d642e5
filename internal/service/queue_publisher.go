// Package service holds background collaborators of the HTTP layer.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/vendor-vault/internal/queue"
)

// ErrPublisherBusy is returned when the outgoing buffer is full.
var ErrPublisherBusy = errors.New("event buffer full")

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// dialFunc opens a channel to the broker and returns a closer for the
// underlying connection.
type dialFunc func(url string) (amqpChannel, func() error, error)

func dialAMQP(url string) (amqpChannel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher sends domain events to queue.AuditQueue.  Publish only
// enqueues; Run owns the broker connection and drains the buffer, so a slow
// or absent broker never blocks a request.
type Publisher struct {
	url     string
	log     zerolog.Logger
	pending chan amqp.Publishing
	dial    dialFunc
	now     func() time.Time
}

// NewPublisher buffers up to size events.
func NewPublisher(url string, size int, log zerolog.Logger) *Publisher {
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		url:     url,
		log:     log.With().Str("component", "event-publisher").Logger(),
		pending: make(chan amqp.Publishing, size),
		dial:    dialAMQP,
		now:     time.Now,
	}
}

// Publish marshals event and queues it for delivery as a persistent JSON
// message of the given type.
func (p *Publisher) Publish(ctx context.Context, eventType string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         eventType,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	select {
	case p.pending <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrPublisherBusy
	}
}

// Run delivers queued events until ctx is cancelled, reconnecting with
// backoff.  A message that failed to send is retried on the next
// connection.
func (p *Publisher) Run(ctx context.Context) {
	var (
		retry   *amqp.Publishing
		backoff = time.Second
	)
	for {
		ch, closeConn, err := p.dial(p.url)
		if err != nil {
			p.log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
			if !queue.Sleep(ctx, backoff) {
				return
			}
			backoff = queue.NextBackoff(backoff)
			continue
		}
		backoff = time.Second

		retry, err = p.drain(ctx, ch, retry)
		_ = closeConn()
		if ctx.Err() != nil {
			return
		}
		p.log.Warn().Err(err).Msg("publish loop ended; reconnecting")
		if !queue.Sleep(ctx, 2*time.Second) {
			return
		}
	}
}

// drain publishes until ctx ends or the broker fails.  It returns the
// message that could not be sent, if any.
func (p *Publisher) drain(ctx context.Context, ch amqpChannel, retry *amqp.Publishing) (*amqp.Publishing, error) {
	if _, err := ch.QueueDeclare(queue.AuditQueue, true, false, false, false, nil); err != nil {
		return retry, fmt.Errorf("queue declare: %w", err)
	}
	send := func(msg amqp.Publishing) error {
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return ch.PublishWithContext(sendCtx, "", queue.AuditQueue, false, false, msg)
	}
	if retry != nil {
		if err := send(*retry); err != nil {
			return retry, err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-p.pending:
			if err := send(msg); err != nil {
				return &msg, err
			}
			p.log.Debug().Str("type", msg.Type).Str("message_id", msg.MessageId).Msg("event published")
		}
	}
}
