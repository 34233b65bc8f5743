package usecase

import (
	"context"
	"log/slog"
	"time"

	"circulation-service/internal/domain/hold"
	"circulation-service/internal/infra"
	"circulation-service/internal/pkg/clock"
	"circulation-service/internal/pkg/config"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
)

// ExpirationSweeper retires stale holds: pending holds nobody acted on
// within the request expiry, and confirmed holds whose pickup deadline
// passed. Each hold is expired in its own row-locked transaction so one
// bad record never stalls the batch, and a hold being confirmed
// concurrently can never also be expired.
type ExpirationSweeper struct {
	uow      shared.UnitOfWork
	notifier Notifier
	clock    clock.Clock
	cfg      config.CirculationConfig
	logger   *slog.Logger
}

func NewExpirationSweeper(
	uow shared.UnitOfWork,
	notifier Notifier,
	clk clock.Clock,
	cfg config.CirculationConfig,
	logger *slog.Logger,
) *ExpirationSweeper {
	return &ExpirationSweeper{
		uow:      uow,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunExpirationSweep processes one pass and returns how many holds it
// expired.
func (s *ExpirationSweeper) RunExpirationSweep(ctx context.Context) (int, error) {
	now := s.clock.Now()

	ids, err := s.uow.Reads().ExpiredHoldIDs(ctx, now, s.cfg.RequestExpiry)
	if err != nil {
		return 0, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	processed := 0
	for _, id := range ids {
		expired, err := s.expireOne(ctx, id, now)
		if err != nil {
			s.logger.Error("failed to expire hold", "hold_id", id, "error", err)
			continue
		}
		if expired {
			processed++
		}
	}

	s.sendPickupReminders(ctx, now)

	if processed > 0 {
		s.logger.Info("expiration sweep finished", "expired", processed)
	}
	return processed, nil
}

func (s *ExpirationSweeper) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var notif *Notification
	err := s.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		h, err := tx.Holds().GetForUpdate(ctx, id)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return nil
			}
			return err
		}
		// Re-check under the row lock: a concurrent confirm may have moved
		// the deadline, a cancel may have closed the hold already.
		if !h.IsExpired(now, s.cfg.RequestExpiry) {
			return nil
		}
		if err := h.Expire(); err != nil {
			return err
		}

		if h.ReleaseLock() {
			if err := tx.Items().ReleaseCopy(ctx, h.ItemID()); err != nil {
				return err
			}
		}
		if err := s.cancelPairedLoan(ctx, tx, h.ID()); err != nil {
			return err
		}
		if err := tx.Holds().Update(ctx, h); err != nil {
			return err
		}

		notif = &Notification{HoldID: h.ID(), ItemID: h.ItemID(), UserID: h.UserID()}
		return nil
	})
	if err != nil || notif == nil {
		return false, err
	}

	s.fillUserDetails(ctx, notif)
	s.notifier.HoldExpired(ctx, *notif)
	return true, nil
}

func (s *ExpirationSweeper) cancelPairedLoan(ctx context.Context, tx shared.Tx, holdID uuid.UUID) error {
	l, err := tx.Loans().GetByHoldIDForUpdate(ctx, holdID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil
		}
		return err
	}
	if !l.Status().IsActive() {
		return nil
	}
	if err := l.Cancel(); err != nil {
		return err
	}
	return tx.Loans().Update(ctx, l)
}

// sendPickupReminders nudges patrons whose confirmed hold is approaching
// its pickup deadline. Reminder bookkeeping lives on the hold so each one
// goes out once.
func (s *ExpirationSweeper) sendPickupReminders(ctx context.Context, now time.Time) {
	ids, err := s.uow.Reads().ConfirmedHoldIDsNeedingReminder(ctx, now, s.cfg.PickupReminderLead)
	if err != nil {
		s.logger.Error("failed to list holds needing pickup reminder", "error", err)
		return
	}

	for _, id := range ids {
		var notif *Notification
		err := s.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
			h, err := tx.Holds().GetForUpdate(ctx, id)
			if err != nil {
				if infra.IsKind(err, infra.KindNotFound) {
					return nil
				}
				return err
			}
			if h.ReminderSent() || h.Status() != hold.StatusConfirmed {
				return nil
			}
			h.MarkReminderSent()
			if err := tx.Holds().Update(ctx, h); err != nil {
				return err
			}
			notif = &Notification{HoldID: h.ID(), ItemID: h.ItemID(), UserID: h.UserID()}
			return nil
		})
		if err != nil {
			s.logger.Error("failed to mark pickup reminder", "hold_id", id, "error", err)
			continue
		}
		if notif != nil {
			s.fillUserDetails(ctx, notif)
			s.notifier.PickupReminder(ctx, *notif)
		}
	}
}

func (s *ExpirationSweeper) fillUserDetails(ctx context.Context, n *Notification) {
	if user, err := s.uow.Reads().UserByID(ctx, n.UserID); err == nil {
		n.UserEmail = user.Email
	}
	if item, err := s.uow.Reads().ItemByID(ctx, n.ItemID); err == nil {
		n.ItemTitle = item.Title
	}
}
