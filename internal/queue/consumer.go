package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// StartAuditConsumer connects to the broker at url, declares AuditQueue and
// appends one line per event to the file at path.  It reconnects with
// exponential backoff and returns only when ctx is cancelled.  A message
// that cannot be decoded is rejected without requeue.
func StartAuditConsumer(ctx context.Context, url, path string, log zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	log = log.With().Str("component", "audit-consumer").Logger()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
			if !Sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = NextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, f, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !Sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, w io.Writer, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := writeAudit(w, d.Type, d.Body, d.Timestamp); err != nil {
				log.Error().Err(err).Str("type", d.Type).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// writeAudit renders one event as a single line and writes it to w.
// received is used when the message carries no timestamp.
func writeAudit(w io.Writer, eventType string, body []byte, received time.Time) error {
	if received.IsZero() {
		received = time.Now()
	}
	var line string
	switch eventType {
	case EventUserRegistered:
		var ev UserRegisteredEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		line = fmt.Sprintf("[%s] user registered | user_id=%s | email=%q | role=%s\n",
			stamp(ev.RegisteredAt, received), ev.UserID, ev.Email, ev.Role)
	case EventVendorChanged:
		var ev VendorChangedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		line = fmt.Sprintf("[%s] vendor %s | vendor_id=%s | actor_id=%s\n",
			stamp(ev.At, received), ev.Action, ev.VendorID, ev.ActorID)
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}
	_, err := io.WriteString(w, line)
	return err
}

func stamp(at, fallback time.Time) string {
	if at.IsZero() {
		at = fallback
	}
	return at.UTC().Format(time.RFC3339)
}
