package usecase

import (
	"context"
	"log/slog"

	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/infra"
	"circulation-service/internal/pkg/clock"
	"circulation-service/internal/pkg/config"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrNotFound                = errs.New("not found")
	ErrInvalidState            = errs.New("operation not legal from current status")
	ErrCapacityExceeded        = errs.New("no copy available")
	ErrDuplicateRequest        = errs.New("pending hold already exists for this item")
	ErrLimitExceeded           = errs.New("pending hold limit reached")
	ErrForbidden               = errs.New("operation not permitted for this user")
	ErrDomainValidation        = errs.New("domain validation error")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

// CirculationCommands is the single entry point for every hold/loan
// mutation. Each operation runs inside one unit-of-work transaction so
// the inventory counter, the hold status and the loan status advance
// together or not at all. Notifications go out after commit, best-effort.
type CirculationCommands interface {
	CreateHold(ctx context.Context, itemID, userID uuid.UUID) (*hold.Hold, error)
	ConfirmHold(ctx context.Context, holdID, staffID uuid.UUID, comment string) (*hold.Hold, error)
	RejectHold(ctx context.Context, holdID, staffID uuid.UUID, reason string) (*hold.Hold, error)
	CancelHold(ctx context.Context, holdID, userID uuid.UUID) (*hold.Hold, error)
	MarkBorrowingStarted(ctx context.Context, holdID, staffID uuid.UUID) (*hold.Hold, error)
	ReturnLoan(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error)
	CloseLoan(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error)
	FlagNotReturned(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error)
	ExtendLoan(ctx context.Context, loanID, userID uuid.UUID, days int) (*loan.Loan, error)
	RecordFeedback(ctx context.Context, loanID, userID uuid.UUID, text string, rating int) (*loan.Loan, error)
}

type circulationImpl struct {
	uow      shared.UnitOfWork
	notifier Notifier
	clock    clock.Clock
	cfg      config.CirculationConfig
	logger   *slog.Logger
}

func NewCirculationCommands(
	uow shared.UnitOfWork,
	notifier Notifier,
	clk clock.Clock,
	cfg config.CirculationConfig,
	logger *slog.Logger,
) CirculationCommands {
	return &circulationImpl{
		uow:      uow,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

func (c *circulationImpl) CreateHold(ctx context.Context, itemID, userID uuid.UUID) (*hold.Hold, error) {
	user, err := c.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := c.itemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var created *hold.Hold
	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		dup, err := tx.Holds().HasPendingDuplicate(ctx, userID, itemID, item.ISBN)
		if err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		if dup {
			return ErrDuplicateRequest
		}

		pending, err := tx.Holds().CountPendingByUser(ctx, userID)
		if err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		if pending >= c.cfg.PendingLimit {
			return ErrLimitExceeded
		}

		h := hold.NewHold(itemID, userID, item.LibraryID, now)
		if err := tx.Holds().Create(ctx, h); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		// Shadow loan, created in lockstep with the hold.
		l, err := loan.NewLoan(h.ID(), userID, itemID, item.LibraryID, c.cfg.LoanDurationDays, now)
		if err != nil {
			return errs.Mark(err, ErrDomainValidation)
		}
		if err := tx.Loans().Create(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		created = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.notifier.HoldCreated(ctx, c.notification(created, user, item.Title))
	return created, nil
}

func (c *circulationImpl) ConfirmHold(ctx context.Context, holdID, staffID uuid.UUID, comment string) (*hold.Hold, error) {
	staff, err := c.staffByID(ctx, staffID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var confirmed *hold.Hold
	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		h, err := c.holdForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if err := c.requireSameLibrary(staff, h.LibraryID()); err != nil {
			return err
		}

		if err := h.Confirm(now, c.cfg.PickupWindow, comment); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Items().TryReserveCopy(ctx, h.ItemID()); err != nil {
			if infra.IsKind(err, infra.KindConflict) {
				return ErrCapacityExceeded
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		if err := tx.Holds().Update(ctx, h); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		l, err := c.pairedLoan(ctx, tx, h, now)
		if err != nil {
			return err
		}
		if err := l.Borrow(now); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := l.Start(); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		confirmed = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	if user, uerr := c.userByID(ctx, confirmed.UserID()); uerr == nil {
		c.notifier.HoldConfirmed(ctx, c.notification(confirmed, user, c.itemTitle(ctx, confirmed.ItemID())), *confirmed.PickupDeadline())
	}
	return confirmed, nil
}

func (c *circulationImpl) RejectHold(ctx context.Context, holdID, staffID uuid.UUID, reason string) (*hold.Hold, error) {
	staff, err := c.staffByID(ctx, staffID)
	if err != nil {
		return nil, err
	}

	var rejected *hold.Hold
	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		h, err := c.holdForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if err := c.requireSameLibrary(staff, h.LibraryID()); err != nil {
			return err
		}
		if err := h.Reject(reason); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := c.releaseAndCancelLoan(ctx, tx, h); err != nil {
			return err
		}
		if err := tx.Holds().Update(ctx, h); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		rejected = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	if user, uerr := c.userByID(ctx, rejected.UserID()); uerr == nil {
		c.notifier.HoldRejected(ctx, c.notification(rejected, user, c.itemTitle(ctx, rejected.ItemID())), reason)
	}
	return rejected, nil
}

func (c *circulationImpl) CancelHold(ctx context.Context, holdID, userID uuid.UUID) (*hold.Hold, error) {
	var cancelled *hold.Hold
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		h, err := c.holdForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if h.UserID() != userID {
			return ErrForbidden
		}
		if err := h.Cancel(); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := c.releaseAndCancelLoan(ctx, tx, h); err != nil {
			return err
		}
		if err := tx.Holds().Update(ctx, h); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		cancelled = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (c *circulationImpl) MarkBorrowingStarted(ctx context.Context, holdID, staffID uuid.UUID) (*hold.Hold, error) {
	staff, err := c.staffByID(ctx, staffID)
	if err != nil {
		return nil, err
	}

	var started *hold.Hold
	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		h, err := c.holdForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if err := c.requireSameLibrary(staff, h.LibraryID()); err != nil {
			return err
		}
		// The copy leaves with the borrower: the lock clears without a
		// release back to the pool.
		if err := h.StartBorrowing(); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Holds().Update(ctx, h); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		started = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

func (c *circulationImpl) ReturnLoan(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error) {
	if _, err := c.staffByID(ctx, staffID); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var returned *loan.Loan
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		l, err := c.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := l.Return(now); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}

		// If the hold never advanced past CONFIRMED the copy lock is still
		// set; moving it to BORROWING_STARTED clears the lock so the single
		// release below stays the only one.
		h, err := tx.Holds().GetForUpdate(ctx, l.HoldID())
		if err == nil && h.Status() == hold.StatusConfirmed {
			if serr := h.StartBorrowing(); serr == nil {
				if uerr := tx.Holds().Update(ctx, h); uerr != nil {
					return errs.Mark(uerr, ErrDatabaseOperationFailed)
				}
			}
		} else if err != nil && !infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if err := tx.Items().ReleaseCopy(ctx, l.ItemID()); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		returned = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

func (c *circulationImpl) CloseLoan(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error) {
	if _, err := c.staffByID(ctx, staffID); err != nil {
		return nil, err
	}

	var closed *loan.Loan
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		l, err := c.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := l.Close(); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		closed = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// FlagNotReturned routes an unreturned loan: past due it is blocked,
// otherwise the borrower gets a return reminder and the loan stays live.
func (c *circulationImpl) FlagNotReturned(ctx context.Context, loanID, staffID uuid.UUID) (*loan.Loan, error) {
	if _, err := c.staffByID(ctx, staffID); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var flagged *loan.Loan
	remind := false
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		l, err := c.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !l.Status().IsActive() {
			return ErrInvalidState
		}
		if l.IsOverdue(now) {
			if err := l.Block(now); err != nil {
				return errs.Mark(err, ErrInvalidState)
			}
			if err := tx.Loans().Update(ctx, l); err != nil {
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
		} else {
			remind = true
		}
		flagged = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if remind {
		if user, uerr := c.userByID(ctx, flagged.UserID()); uerr == nil {
			n := Notification{
				LoanID:    flagged.ID(),
				HoldID:    flagged.HoldID(),
				ItemID:    flagged.ItemID(),
				UserID:    user.ID,
				UserEmail: user.Email,
				ItemTitle: c.itemTitle(ctx, flagged.ItemID()),
			}
			c.notifier.ReturnReminder(ctx, n, flagged.DaysLeft(now))
		}
	}
	return flagged, nil
}

func (c *circulationImpl) ExtendLoan(ctx context.Context, loanID, userID uuid.UUID, days int) (*loan.Loan, error) {
	now := c.clock.Now()
	var extended *loan.Loan
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		l, err := c.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.UserID() != userID {
			return ErrForbidden
		}
		if err := l.Extend(days, now); err != nil {
			if err == loan.ErrInvalidExtension {
				return errs.Mark(err, ErrDomainValidation)
			}
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		extended = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extended, nil
}

func (c *circulationImpl) RecordFeedback(ctx context.Context, loanID, userID uuid.UUID, text string, rating int) (*loan.Loan, error) {
	var updated *loan.Loan
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		l, err := c.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := l.RecordFeedback(userID, text, rating); err != nil {
			switch err {
			case loan.ErrFeedbackNotOwner:
				return ErrForbidden
			case loan.ErrInvalidRating:
				return errs.Mark(err, ErrDomainValidation)
			default:
				return errs.Mark(err, ErrInvalidState)
			}
		}
		// Feedback on a returned loan finishes it off.
		if l.Status() == loan.StatusReturned {
			if err := l.Close(); err != nil {
				return errs.Mark(err, ErrInvalidState)
			}
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// releaseAndCancelLoan puts the hold's locked copy (if any) back into the
// pool and cancels the paired loan while it is still active, so an
// abandoned hold cannot leave a live loan whose return would free the
// copy a second time. Shared by reject, cancel and expire paths.
func (c *circulationImpl) releaseAndCancelLoan(ctx context.Context, tx shared.Tx, h *hold.Hold) error {
	if h.ReleaseLock() {
		if err := tx.Items().ReleaseCopy(ctx, h.ItemID()); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
	}

	l, err := tx.Loans().GetByHoldIDForUpdate(ctx, h.ID())
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil
		}
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if l.Status().IsActive() {
		if err := l.Cancel(); err != nil {
			return errs.Mark(err, ErrInvalidState)
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
	}
	return nil
}
