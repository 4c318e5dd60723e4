package corrections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/mlclient"
)

type correctionSubmitter interface {
	SubmitCorrection(ctx context.Context, c mlclient.Correction) error
}

// HTTPSink posts corrections straight to the ML service.
type HTTPSink struct {
	client correctionSubmitter
}

// NewHTTPSink wraps an ML client.
func NewHTTPSink(client correctionSubmitter) *HTTPSink {
	return &HTTPSink{client: client}
}

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, c mlclient.Correction) error {
	return s.client.SubmitCorrection(ctx, c)
}

// Message is the broker envelope for a correction.
type Message struct {
	Correction mlclient.Correction `json:"correction"`
	Timestamp  time.Time           `json:"timestamp"`
}

// NewMessage stamps a correction with the current time.
func NewMessage(c mlclient.Correction) *Message {
	return &Message{Correction: c, Timestamp: time.Now().UTC()}
}

// ToJSON converts the message to JSON bytes.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a message published by AMQPSink.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AMQPSink publishes corrections to a durable queue. The same type consumes
// the queue in the corrections worker.
type AMQPSink struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewAMQPSink dials the broker and declares a direct exchange with the queue
// bound under its own name.
func NewAMQPSink(url, exchangeName, queueName string) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	s := &AMQPSink{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := s.setup(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return s, nil
}

func (s *AMQPSink) setup() error {
	if err := s.channel.ExchangeDeclare(s.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := s.channel.QueueDeclare(s.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := s.channel.QueueBind(s.queueName, s.queueName, s.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Send implements Sink.
func (s *AMQPSink) Send(ctx context.Context, c mlclient.Correction) error {
	body, err := NewMessage(c).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = s.channel.PublishWithContext(ctx, s.exchangeName, s.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (s *AMQPSink) Close() error {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
