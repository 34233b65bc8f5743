package hold

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotPending       = errors.New("hold is not pending")
	ErrNotConfirmed     = errors.New("hold is not confirmed")
	ErrNotOpen          = errors.New("hold is neither pending nor confirmed")
	ErrAlreadyConfirmed = errors.New("hold is already confirmed")
)

// Hold is a reservation ticket: a patron's intent to borrow one copy of a
// catalog item. The copy-lock flag tracks whether this hold currently owns
// a copy taken out of the item's pool; it is true exactly while the hold is
// CONFIRMED, and releasing it is a one-shot operation.
type Hold struct {
	id             uuid.UUID
	itemID         uuid.UUID
	userID         uuid.UUID
	libraryID      uuid.UUID
	status         Status
	requestedAt    time.Time
	confirmedAt    *time.Time
	pickupDeadline *time.Time
	copyLocked     bool
	reminderSent   bool
	comment        *string
}

func NewHold(itemID, userID, libraryID uuid.UUID, now time.Time) *Hold {
	return &Hold{
		id:          uuid.New(),
		itemID:      itemID,
		userID:      userID,
		libraryID:   libraryID,
		status:      StatusPending,
		requestedAt: now,
	}
}

func ReconstructHold(
	id, itemID, userID, libraryID uuid.UUID,
	status Status,
	requestedAt time.Time,
	confirmedAt, pickupDeadline *time.Time,
	copyLocked, reminderSent bool,
	comment *string,
) *Hold {
	return &Hold{
		id:             id,
		itemID:         itemID,
		userID:         userID,
		libraryID:      libraryID,
		status:         status,
		requestedAt:    requestedAt,
		confirmedAt:    confirmedAt,
		pickupDeadline: pickupDeadline,
		copyLocked:     copyLocked,
		reminderSent:   reminderSent,
		comment:        comment,
	}
}

// Confirm moves a pending hold to CONFIRMED. The caller must have already
// reserved a copy from the item's pool; the lock flag records ownership.
func (h *Hold) Confirm(now time.Time, pickupWindow time.Duration, comment string) error {
	if h.status == StatusConfirmed {
		return ErrAlreadyConfirmed
	}
	if h.status != StatusPending {
		return ErrNotPending
	}
	deadline := now.Add(pickupWindow)
	h.status = StatusConfirmed
	h.confirmedAt = &now
	h.pickupDeadline = &deadline
	h.copyLocked = true
	if c := strings.TrimSpace(comment); c != "" {
		h.comment = &c
	}
	return nil
}

func (h *Hold) Reject(reason string) error {
	if h.status != StatusPending {
		return ErrNotPending
	}
	h.status = StatusRejected
	if r := strings.TrimSpace(reason); r != "" {
		h.comment = &r
	}
	return nil
}

func (h *Hold) Cancel() error {
	if !h.status.IsOpen() {
		return ErrNotOpen
	}
	h.status = StatusCancelled
	return nil
}

// Expire retires an open hold whose deadline has passed. Sweeper only.
func (h *Hold) Expire() error {
	if !h.status.IsOpen() {
		return ErrNotOpen
	}
	h.status = StatusExpired
	return nil
}

// StartBorrowing marks the item as physically handed over; the paired loan
// continues on its own lifecycle.
func (h *Hold) StartBorrowing() error {
	if h.status != StatusConfirmed {
		return ErrNotConfirmed
	}
	h.status = StatusBorrowingStarted
	// The copy stays out of the pool with the borrower.
	h.copyLocked = false
	return nil
}

// ReleaseLock clears the copy-lock flag and reports whether it was set.
// A true return means the caller must put exactly one copy back into the
// item's pool; a second call never returns true again.
func (h *Hold) ReleaseLock() bool {
	if !h.copyLocked {
		return false
	}
	h.copyLocked = false
	return true
}

// ExpiresAt is the moment this hold becomes stale: the pickup deadline for
// confirmed holds, requestedAt plus the request expiry for pending ones.
func (h *Hold) ExpiresAt(requestExpiry time.Duration) time.Time {
	if h.status == StatusConfirmed && h.pickupDeadline != nil {
		return *h.pickupDeadline
	}
	return h.requestedAt.Add(requestExpiry)
}

func (h *Hold) IsExpired(now time.Time, requestExpiry time.Duration) bool {
	return h.status.IsOpen() && h.ExpiresAt(requestExpiry).Before(now)
}

func (h *Hold) MarkReminderSent() {
	h.reminderSent = true
}

func (h *Hold) ID() uuid.UUID              { return h.id }
func (h *Hold) ItemID() uuid.UUID          { return h.itemID }
func (h *Hold) UserID() uuid.UUID          { return h.userID }
func (h *Hold) LibraryID() uuid.UUID       { return h.libraryID }
func (h *Hold) Status() Status             { return h.status }
func (h *Hold) RequestedAt() time.Time     { return h.requestedAt }
func (h *Hold) ConfirmedAt() *time.Time    { return h.confirmedAt }
func (h *Hold) PickupDeadline() *time.Time { return h.pickupDeadline }
func (h *Hold) CopyLocked() bool           { return h.copyLocked }
func (h *Hold) ReminderSent() bool         { return h.reminderSent }
func (h *Hold) Comment() *string           { return h.comment }
