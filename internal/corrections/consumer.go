package corrections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/logger"
)

// Forwarder moves corrections from the queue AMQPSink publishes to onto
// another Sink, normally the HTTP sink in front of the ML service.
type Forwarder struct {
	sink    Sink
	timeout time.Duration
}

// NewForwarder creates a Forwarder. Each Send gets its own timeout.
func NewForwarder(sink Sink, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{sink: sink, timeout: timeout}
}

// Handle forwards one delivery. Malformed bodies are dropped; a failed send
// is requeued.
func (f *Forwarder) Handle(ctx context.Context, d amqp091.Delivery) error {
	log := logger.Named("corrections")

	msg, err := MessageFromJSON(d.Body)
	if err != nil {
		log.Errorw("Dropping malformed correction message", "error", err)
		return d.Nack(false, false)
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.sink.Send(sendCtx, msg.Correction); err != nil {
		log.Warnw("Correction forward failed, requeueing",
			"user_id", msg.Correction.UserID, "error", err)
		return d.Nack(false, true)
	}

	log.Debugw("Correction forwarded", "user_id", msg.Correction.UserID, "queued_at", msg.Timestamp)
	return d.Ack(false)
}

// Consume reads the queue until ctx is cancelled, handing each delivery to
// f. prefetch bounds how many unacknowledged messages are held at once.
func (s *AMQPSink) Consume(ctx context.Context, f *Forwarder, prefetch int) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := s.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := s.channel.Consume(s.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	logger.Named("corrections").Infow("Consuming corrections", "queue", s.queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := f.Handle(ctx, d); err != nil {
				return fmt.Errorf("acknowledge delivery: %w", err)
			}
		}
	}
}
