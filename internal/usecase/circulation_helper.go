package usecase

import (
	"context"
	"time"

	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/infra"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
)

func (c *circulationImpl) userByID(ctx context.Context, id uuid.UUID) (*shared.UserSnapshot, error) {
	user, err := c.uow.Reads().UserByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return user, nil
}

func (c *circulationImpl) staffByID(ctx context.Context, id uuid.UUID) (*shared.UserSnapshot, error) {
	user, err := c.userByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, ErrForbidden
	}
	return user, nil
}

func (c *circulationImpl) itemByID(ctx context.Context, id uuid.UUID) (*shared.ItemSnapshot, error) {
	item, err := c.uow.Reads().ItemByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return item, nil
}

func (c *circulationImpl) holdForUpdate(ctx context.Context, tx shared.Tx, id uuid.UUID) (*hold.Hold, error) {
	h, err := tx.Holds().GetForUpdate(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return h, nil
}

func (c *circulationImpl) loanForUpdate(ctx context.Context, tx shared.Tx, id uuid.UUID) (*loan.Loan, error) {
	l, err := tx.Loans().GetForUpdate(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return l, nil
}

// requireSameLibrary rejects staff acting on a hold outside their own
// library.
func (c *circulationImpl) requireSameLibrary(staff *shared.UserSnapshot, libraryID uuid.UUID) error {
	if staff.LibraryID == nil || *staff.LibraryID != libraryID {
		return ErrForbidden
	}
	return nil
}

// pairedLoan loads the loan created alongside the hold. A missing pair
// should not happen; the record is recreated rather than failing the
// confirmation so a historical data gap cannot block the desk.
func (c *circulationImpl) pairedLoan(ctx context.Context, tx shared.Tx, h *hold.Hold, now time.Time) (*loan.Loan, error) {
	l, err := tx.Loans().GetByHoldIDForUpdate(ctx, h.ID())
	if err == nil {
		return l, nil
	}
	if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	c.logger.Warn("no shadow loan paired with hold, recreating",
		"hold_id", h.ID(), "user_id", h.UserID(), "item_id", h.ItemID())
	l, err = loan.NewLoan(h.ID(), h.UserID(), h.ItemID(), h.LibraryID(), c.cfg.LoanDurationDays, now)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}
	if err := tx.Loans().Create(ctx, l); err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return l, nil
}

func (c *circulationImpl) notification(h *hold.Hold, user *shared.UserSnapshot, itemTitle string) Notification {
	return Notification{
		HoldID:    h.ID(),
		ItemID:    h.ItemID(),
		UserID:    user.ID,
		UserEmail: user.Email,
		ItemTitle: itemTitle,
	}
}

// itemTitle is for notification payloads only; a lookup failure degrades
// to an empty title instead of failing the operation.
func (c *circulationImpl) itemTitle(ctx context.Context, itemID uuid.UUID) string {
	item, err := c.uow.Reads().ItemByID(ctx, itemID)
	if err != nil {
		return ""
	}
	return item.Title
}
