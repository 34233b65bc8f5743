package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification identifies the hold or loan an outbound message refers to.
type Notification struct {
	HoldID    uuid.UUID
	LoanID    uuid.UUID
	ItemID    uuid.UUID
	UserID    uuid.UUID
	UserEmail string
	ItemTitle string
}

// Notifier delivers outbound messages to patrons. All methods are
// fire-and-forget: they are invoked after the transaction commits and
// implementations log failures instead of returning them.
type Notifier interface {
	HoldCreated(ctx context.Context, n Notification)
	HoldConfirmed(ctx context.Context, n Notification, pickupDeadline time.Time)
	PickupReminder(ctx context.Context, n Notification)
	ReturnReminder(ctx context.Context, n Notification, daysLeft int)
	HoldRejected(ctx context.Context, n Notification, reason string)
	HoldExpired(ctx context.Context, n Notification)
}
