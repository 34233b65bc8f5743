package loan

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinDurationDays = 1
	MaxDurationDays = 90
	MaxExtensions   = 2
	// LateFeeCentsPerDay is the flat penalty per day past the due date.
	LateFeeCentsPerDay = 50
)

var (
	ErrInvalidDuration   = errors.New("loan duration must be between 1 and 90 days")
	ErrNotBorrowable     = errors.New("loan cannot move to borrowed from its current state")
	ErrNotBorrowed       = errors.New("only a borrowed loan can move in progress")
	ErrNotReturnable     = errors.New("loan cannot be returned from its current state")
	ErrNotReturned       = errors.New("only a returned loan can be closed")
	ErrNotInProgress     = errors.New("only an in-progress loan can be blocked")
	ErrNotOverdue        = errors.New("loan is not past its due date")
	ErrAlreadyTerminal   = errors.New("loan is already closed or cancelled")
	ErrNotExtendable     = errors.New("loan cannot be extended")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrFeedbackNotOpen   = errors.New("feedback is only accepted on returned loans")
	ErrFeedbackNotOwner  = errors.New("feedback can only be left by the borrower")
	ErrInvalidExtension  = errors.New("extension days must be positive")
	ErrReturnBeforeStart = errors.New("return date precedes the borrow date")
)

// Loan is the borrowing record paired 1:1 with a hold for its active
// lifetime; it outlives the hold for history and reporting.
type Loan struct {
	id           uuid.UUID
	holdID       uuid.UUID
	userID       uuid.UUID
	itemID       uuid.UUID
	libraryID    uuid.UUID
	status       Status
	reservedAt   time.Time
	borrowedAt   *time.Time
	dueDate      time.Time
	returnedAt   *time.Time
	durationDays int
	extensions   int
	lateFeeCents int64
	feedback     *string
	rating       *int
}

func NewLoan(holdID, userID, itemID, libraryID uuid.UUID, durationDays int, now time.Time) (*Loan, error) {
	if durationDays < MinDurationDays || durationDays > MaxDurationDays {
		return nil, ErrInvalidDuration
	}
	return &Loan{
		id:           uuid.New(),
		holdID:       holdID,
		userID:       userID,
		itemID:       itemID,
		libraryID:    libraryID,
		status:       StatusReserved,
		reservedAt:   now,
		dueDate:      dateOf(now).AddDate(0, 0, durationDays),
		durationDays: durationDays,
	}, nil
}

func ReconstructLoan(
	id, holdID, userID, itemID, libraryID uuid.UUID,
	status Status,
	reservedAt time.Time,
	borrowedAt *time.Time,
	dueDate time.Time,
	returnedAt *time.Time,
	durationDays, extensions int,
	lateFeeCents int64,
	feedback *string,
	rating *int,
) *Loan {
	return &Loan{
		id:           id,
		holdID:       holdID,
		userID:       userID,
		itemID:       itemID,
		libraryID:    libraryID,
		status:       status,
		reservedAt:   reservedAt,
		borrowedAt:   borrowedAt,
		dueDate:      dueDate,
		returnedAt:   returnedAt,
		durationDays: durationDays,
		extensions:   extensions,
		lateFeeCents: lateFeeCents,
		feedback:     feedback,
		rating:       rating,
	}
}

// Borrow records the physical handover and restarts the due-date window
// from today.
func (l *Loan) Borrow(now time.Time) error {
	if l.status != StatusReserved && l.status != StatusBorrowed {
		return ErrNotBorrowable
	}
	l.status = StatusBorrowed
	l.borrowedAt = &now
	l.dueDate = dateOf(now).AddDate(0, 0, l.durationDays)
	return nil
}

func (l *Loan) Start() error {
	if l.status != StatusBorrowed {
		return ErrNotBorrowed
	}
	l.status = StatusInProgress
	return nil
}

// Return closes out possession and computes the late fee at day
// granularity: max(0, days past due) * LateFeeCentsPerDay. Returning on
// the due date itself costs nothing.
func (l *Loan) Return(now time.Time) error {
	if l.status != StatusBorrowed && l.status != StatusInProgress {
		return ErrNotReturnable
	}
	start := l.reservedAt
	if l.borrowedAt != nil {
		start = *l.borrowedAt
	}
	if now.Before(start) {
		return ErrReturnBeforeStart
	}
	l.status = StatusReturned
	l.returnedAt = &now
	if late := daysBetween(l.dueDate, now); late > 0 {
		l.lateFeeCents = int64(late) * LateFeeCentsPerDay
	}
	return nil
}

func (l *Loan) Close() error {
	if l.status != StatusReturned {
		return ErrNotReturned
	}
	l.status = StatusClosed
	return nil
}

// Block flags an overdue in-progress loan as not returned.
func (l *Loan) Block(now time.Time) error {
	if l.status != StatusInProgress {
		return ErrNotInProgress
	}
	if !l.IsOverdue(now) {
		return ErrNotOverdue
	}
	l.status = StatusBlocked
	return nil
}

func (l *Loan) Cancel() error {
	if l.status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	l.status = StatusCancelled
	return nil
}

// Extend pushes the due date forward. Only active, non-overdue loans with
// fewer than MaxExtensions extensions qualify.
func (l *Loan) Extend(days int, now time.Time) error {
	if days <= 0 {
		return ErrInvalidExtension
	}
	if !l.CanExtend(now) {
		return ErrNotExtendable
	}
	l.dueDate = l.dueDate.AddDate(0, 0, days)
	l.extensions++
	return nil
}

func (l *Loan) CanExtend(now time.Time) bool {
	return l.status.IsActive() && l.extensions < MaxExtensions && !l.IsOverdue(now)
}

func (l *Loan) IsOverdue(now time.Time) bool {
	return l.returnedAt == nil && daysBetween(l.dueDate, now) > 0
}

// DaysLeft is the number of whole days until the due date; negative when
// overdue.
func (l *Loan) DaysLeft(now time.Time) int {
	return -daysBetween(l.dueDate, now)
}

// RecordFeedback stores the borrower's comment and rating. Accepted only
// once the item is back (RETURNED or CLOSED).
func (l *Loan) RecordFeedback(ownerID uuid.UUID, text string, rating int) error {
	if l.userID != ownerID {
		return ErrFeedbackNotOwner
	}
	if l.status != StatusReturned && l.status != StatusClosed {
		return ErrFeedbackNotOpen
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if t := strings.TrimSpace(text); t != "" {
		l.feedback = &t
	}
	r := rating
	l.rating = &r
	return nil
}

func (l *Loan) ID() uuid.UUID          { return l.id }
func (l *Loan) HoldID() uuid.UUID      { return l.holdID }
func (l *Loan) UserID() uuid.UUID      { return l.userID }
func (l *Loan) ItemID() uuid.UUID      { return l.itemID }
func (l *Loan) LibraryID() uuid.UUID   { return l.libraryID }
func (l *Loan) Status() Status         { return l.status }
func (l *Loan) ReservedAt() time.Time  { return l.reservedAt }
func (l *Loan) BorrowedAt() *time.Time { return l.borrowedAt }
func (l *Loan) DueDate() time.Time     { return l.dueDate }
func (l *Loan) ReturnedAt() *time.Time { return l.returnedAt }
func (l *Loan) DurationDays() int      { return l.durationDays }
func (l *Loan) Extensions() int        { return l.extensions }
func (l *Loan) LateFeeCents() int64    { return l.lateFeeCents }
func (l *Loan) Feedback() *string      { return l.feedback }
func (l *Loan) Rating() *int           { return l.rating }

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole days from a to b at date granularity.
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
