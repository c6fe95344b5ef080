package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"inbound-genie/internal/credits"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakePublisher struct {
	key string
	msg amqp.Publishing
	n   int
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key, f.msg = key, msg
	f.n++
	return nil
}

func sample() Notification {
	alert, _ := credits.LowBalanceAlert(decimal.NewFromInt(12), decimal.NewFromFloat(4.5))
	return FromAlert("acct-1", "call-9", alert, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestFromAlert(t *testing.T) {
	n := sample()
	if n.ID == "" || n.AccountID != "acct-1" || n.CallID != "call-9" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.Severity != credits.SeverityCritical {
		t.Fatalf("expected critical, got %s", n.Severity)
	}
	if !n.Balance.Equal(decimal.NewFromFloat(4.5)) {
		t.Fatalf("expected balance 4.5, got %s", n.Balance)
	}
}

func TestKafkaSink_Emit(t *testing.T) {
	fw := &fakeWriter{}
	s := NewKafkaSinkWithWriter(fw)
	if err := s.Emit(context.Background(), sample()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "acct-1" {
		t.Fatalf("expected account key, got %q", fw.msgs[0].Key)
	}
	var got Notification
	if err := json.Unmarshal(fw.msgs[0].Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.AccountID != "acct-1" || got.Severity != credits.SeverityCritical {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestKafkaSink_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	s := NewKafkaSinkWithWriter(&fakeWriter{err: boom})
	if err := s.Emit(context.Background(), sample()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestRabbitSink_Emit(t *testing.T) {
	fp := &fakePublisher{}
	s := NewRabbitSinkWithPublisher(fp, "notifications")
	if err := s.Emit(context.Background(), sample()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if fp.n != 1 || fp.key != "notifications" {
		t.Fatalf("expected one publish to queue, got n=%d key=%q", fp.n, fp.key)
	}
	if fp.msg.DeliveryMode != amqp.Persistent || fp.msg.ContentType != "application/json" {
		t.Fatalf("expected persistent json message, got %+v", fp.msg)
	}
}

func TestSinks_RejectInvalid(t *testing.T) {
	bad := sample()
	bad.AccountID = ""
	if err := NewMemorySink().Emit(context.Background(), bad); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("expected ErrInvalidNotification, got %v", err)
	}
	if err := NewKafkaSinkWithWriter(&fakeWriter{}).Emit(context.Background(), bad); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("expected ErrInvalidNotification, got %v", err)
	}
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("down")
	failing := NewMemorySink()
	failing.FailWith(boom)
	ok := NewMemorySink()

	err := Fanout{failing, ok, LogSink{}}.Emit(context.Background(), sample())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain sink failure, got %v", err)
	}
	if len(ok.Notifications()) != 1 {
		t.Fatalf("healthy sink should still receive the notification")
	}
}
