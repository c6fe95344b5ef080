package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of amqp.Channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitSink pushes notifications to a durable queue consumed by the mail
// relay.
type RabbitSink struct {
	pub   Publisher
	queue string

	conn *amqp.Connection
	chn  *amqp.Channel
}

// DialRabbitSink opens a connection, declares the durable queue and returns
// a ready sink.
func DialRabbitSink(url, queue string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := chn.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return &RabbitSink{pub: chn, queue: queue, conn: conn, chn: chn}, nil
}

// NewRabbitSinkWithPublisher allows injecting a test publisher.
func NewRabbitSinkWithPublisher(p Publisher, queue string) *RabbitSink {
	return &RabbitSink{pub: p, queue: queue}
}

func (s *RabbitSink) Emit(ctx context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("rabbit sink: marshal: %w", err)
	}
	return s.pub.PublishWithContext(
		ctx,
		"",      // exchange
		s.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
}

func (s *RabbitSink) Close() error {
	if s.chn != nil {
		if err := s.chn.Close(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
