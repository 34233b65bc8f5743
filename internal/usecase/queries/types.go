package queries

import (
	"time"

	"github.com/google/uuid"
)

// HoldView is the read model joined with item metadata for listings.
type HoldView struct {
	ID             uuid.UUID
	ItemID         uuid.UUID
	ItemTitle      string
	UserID         uuid.UUID
	LibraryID      uuid.UUID
	Status         string
	RequestedAt    time.Time
	ConfirmedAt    *time.Time
	PickupDeadline *time.Time
	CopyLocked     bool
	Comment        *string
}

type LoanView struct {
	ID           uuid.UUID
	HoldID       uuid.UUID
	ItemID       uuid.UUID
	ItemTitle    string
	UserID       uuid.UUID
	LibraryID    uuid.UUID
	Status       string
	ReservedAt   time.Time
	BorrowedAt   *time.Time
	DueDate      time.Time
	ReturnedAt   *time.Time
	DurationDays int
	Extensions   int
	LateFeeCents int64
	Feedback     *string
	Rating       *int
}
