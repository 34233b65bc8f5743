// Package notifier holds the outbound notification adapters. The log
// notifier is the default; the kafka notifier publishes the same events to
// a topic for downstream delivery services.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"circulation-service/internal/usecase"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) HoldCreated(_ context.Context, m usecase.Notification) {
	n.logger.Info("hold created",
		"hold_id", m.HoldID, "user", m.UserEmail, "item", m.ItemTitle)
}

func (n *LogNotifier) HoldConfirmed(_ context.Context, m usecase.Notification, pickupDeadline time.Time) {
	n.logger.Info("hold confirmed",
		"hold_id", m.HoldID, "user", m.UserEmail, "item", m.ItemTitle,
		"pickup_deadline", pickupDeadline)
}

func (n *LogNotifier) PickupReminder(_ context.Context, m usecase.Notification) {
	n.logger.Info("pickup reminder",
		"hold_id", m.HoldID, "user", m.UserEmail, "item", m.ItemTitle)
}

func (n *LogNotifier) ReturnReminder(_ context.Context, m usecase.Notification, daysLeft int) {
	n.logger.Info("return reminder",
		"loan_id", m.LoanID, "user", m.UserEmail, "item", m.ItemTitle,
		"days_left", daysLeft)
}

func (n *LogNotifier) HoldRejected(_ context.Context, m usecase.Notification, reason string) {
	n.logger.Info("hold rejected",
		"hold_id", m.HoldID, "user", m.UserEmail, "item", m.ItemTitle,
		"reason", reason)
}

func (n *LogNotifier) HoldExpired(_ context.Context, m usecase.Notification) {
	n.logger.Info("hold expired",
		"hold_id", m.HoldID, "user", m.UserEmail, "item", m.ItemTitle)
}
