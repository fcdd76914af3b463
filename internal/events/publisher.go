package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freight-backend/internal/utils"

	"github.com/segmentio/kafka-go"
)

// Event types published after ledger transitions.
const (
	PaymentAuthorized   = "payment.authorized"
	PaymentReleased     = "payment.released"
	PaymentRefunded     = "payment.refunded"
	PaymentRefundFailed = "payment.refund_failed"
	PaymentOrphaned     = "payment.orphaned"
	PayoutRequested     = "payout.requested"
	TransferFailed      = "transfer.failed"
	BookingConfirmed    = "booking.confirmed"
	BookingCancelled    = "booking.cancelled"
	BookingCleaned      = "booking.cleaned"
)

type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	RequestID  string         `json:"requestId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the application log. Used when no broker
// is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	utils.LogEvent(ev.RequestID, "events", ev.Type, fmt.Sprintf("key=%s data=%s", ev.Key, raw))
	return nil
}

func (LogPublisher) Close() error { return nil }

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher keys messages by Event.Key so all events of one payment
// land on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Topic() string { return p.writer.Topic }

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// New picks Kafka when brokers are configured, the log sink otherwise.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafkaPublisher(KafkaConfig{Brokers: brokers, Topic: topic})
}
