package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"circulation-service/internal/usecase"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventHoldCreated    = "HoldCreated"
	EventHoldConfirmed  = "HoldConfirmed"
	EventPickupReminder = "PickupReminder"
	EventReturnReminder = "ReturnReminder"
	EventHoldRejected   = "HoldRejected"
	EventHoldExpired    = "HoldExpired"
)

type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

type holdEventPayload struct {
	HoldID         string     `json:"hold_id"`
	LoanID         string     `json:"loan_id,omitempty"`
	ItemID         string     `json:"item_id"`
	UserID         string     `json:"user_id"`
	UserEmail      string     `json:"user_email"`
	ItemTitle      string     `json:"item_title"`
	PickupDeadline *time.Time `json:"pickup_deadline,omitempty"`
	DaysLeft       *int       `json:"days_left,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// KafkaNotifier publishes circulation events asynchronously. Write errors
// surface through the completion callback and are logged, never returned;
// a lost notification must not fail the transaction that produced it.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	log := logger.With("component", "kafka_notifier")
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("publish failed", "count", len(messages), "error", err)
			}
		},
	}
	return &KafkaNotifier{writer: w, logger: log}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) HoldCreated(ctx context.Context, m usecase.Notification) {
	n.publish(ctx, EventHoldCreated, payloadFor(m))
}

func (n *KafkaNotifier) HoldConfirmed(ctx context.Context, m usecase.Notification, pickupDeadline time.Time) {
	p := payloadFor(m)
	p.PickupDeadline = &pickupDeadline
	n.publish(ctx, EventHoldConfirmed, p)
}

func (n *KafkaNotifier) PickupReminder(ctx context.Context, m usecase.Notification) {
	n.publish(ctx, EventPickupReminder, payloadFor(m))
}

func (n *KafkaNotifier) ReturnReminder(ctx context.Context, m usecase.Notification, daysLeft int) {
	p := payloadFor(m)
	p.DaysLeft = &daysLeft
	n.publish(ctx, EventReturnReminder, p)
}

func (n *KafkaNotifier) HoldRejected(ctx context.Context, m usecase.Notification, reason string) {
	p := payloadFor(m)
	p.Reason = reason
	n.publish(ctx, EventHoldRejected, p)
}

func (n *KafkaNotifier) HoldExpired(ctx context.Context, m usecase.Notification) {
	n.publish(ctx, EventHoldExpired, payloadFor(m))
}

func payloadFor(m usecase.Notification) holdEventPayload {
	p := holdEventPayload{
		HoldID:    m.HoldID.String(),
		ItemID:    m.ItemID.String(),
		UserID:    m.UserID.String(),
		UserEmail: m.UserEmail,
		ItemTitle: m.ItemTitle,
	}
	if m.LoanID != uuid.Nil {
		p.LoanID = m.LoanID.String()
	}
	return p
}

func (n *KafkaNotifier) publish(ctx context.Context, eventType string, p holdEventPayload) {
	raw, err := json.Marshal(p)
	if err != nil {
		n.logger.Error("marshal payload", "event_type", eventType, "error", err)
		return
	}
	env := envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   "circulation-service",
		Payload:    raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		n.logger.Error("marshal envelope", "event_type", eventType, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(p.UserID),
		Value: value,
		Time:  time.Now(),
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		// Async mode only errors here on closed writer or full buffer.
		n.logger.Error("enqueue message", "event_type", eventType, "error", err)
	}
}
