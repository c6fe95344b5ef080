package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notifications as JSON, keyed by account so one
// account's alerts stay ordered within a partition.
type KafkaSink struct {
	writer Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaSink{writer: w}
}

// NewKafkaSinkWithWriter allows injecting a test writer.
func NewKafkaSinkWithWriter(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Emit(ctx context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(n.AccountID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(n.Severity)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka sink: write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
