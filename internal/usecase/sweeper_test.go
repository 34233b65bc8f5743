//go:build unit

package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeperFixture(t *testing.T) (*fixture, *usecase.ExpirationSweeper) {
	t.Helper()
	f := newFixture(t)
	sweeper := usecase.NewExpirationSweeper(
		f.store, f.notifier, f.clock, f.cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f, sweeper
}

func TestExpirationSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("expires a pending hold past the request expiry", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		f.clock.Add(f.cfg.RequestExpiry + time.Hour)
		expired, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, expired)
		assert.Equal(t, hold.StatusExpired, f.store.Hold(h.ID()).Status())
		assert.Equal(t, loan.StatusCancelled, f.store.LoanByHoldID(h.ID()).Status())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
		assert.Contains(t, f.notifier.names(), "hold_expired")
	})

	t.Run("expires a confirmed hold past its pickup deadline and frees the copy", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		require.Equal(t, 0, f.store.Item(item.ID()).AvailableCopies())

		f.clock.Add(f.cfg.PickupWindow + time.Hour)
		expired, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, expired)
		stored := f.store.Hold(h.ID())
		assert.Equal(t, hold.StatusExpired, stored.Status())
		assert.False(t, stored.CopyLocked())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
		assert.Equal(t, loan.StatusCancelled, f.store.LoanByHoldID(h.ID()).Status())
	})

	t.Run("fresh holds are untouched", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 2, nil)
		pending := f.createHold(t, f.patron.ID, item.ID())
		other := f.seedItem(t, 1, nil)
		confirmed := f.createHold(t, f.seedPatron().ID, other.ID())
		f.confirmHold(t, confirmed.ID())

		f.clock.Add(time.Hour)
		expired, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		assert.Zero(t, expired)
		assert.Equal(t, hold.StatusPending, f.store.Hold(pending.ID()).Status())
		assert.Equal(t, hold.StatusConfirmed, f.store.Hold(confirmed.ID()).Status())
	})

	t.Run("hold handed over before the sweep stays untouched", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		_, err := f.commands.MarkBorrowingStarted(ctx, h.ID(), f.librarian.ID)
		require.NoError(t, err)

		f.clock.Add(f.cfg.PickupWindow + f.cfg.RequestExpiry)
		expired, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		assert.Zero(t, expired)
		assert.Equal(t, hold.StatusBorrowingStarted, f.store.Hold(h.ID()).Status())
		assert.Equal(t, loan.StatusInProgress, f.store.LoanByHoldID(h.ID()).Status())
	})

	t.Run("pickup reminder goes out once inside the lead window", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		// Move inside the reminder lead but before the deadline.
		f.clock.Add(f.cfg.PickupWindow - f.cfg.PickupReminderLead + time.Hour)
		_, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		stored := f.store.Hold(h.ID())
		assert.True(t, stored.ReminderSent())
		assert.Equal(t, hold.StatusConfirmed, stored.Status())

		reminders := 0
		for _, name := range f.notifier.names() {
			if name == "pickup_reminder" {
				reminders++
			}
		}
		assert.Equal(t, 1, reminders)

		// A second pass does not repeat the reminder.
		f.clock.Add(time.Hour)
		_, err = sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		reminders = 0
		for _, name := range f.notifier.names() {
			if name == "pickup_reminder" {
				reminders++
			}
		}
		assert.Equal(t, 1, reminders)
	})

	t.Run("no reminder well before the lead window", func(t *testing.T) {
		f, sweeper := newSweeperFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		_, err := sweeper.RunExpirationSweep(ctx)
		require.NoError(t, err)

		assert.False(t, f.store.Hold(h.ID()).ReminderSent())
		assert.NotContains(t, f.notifier.names(), "pickup_reminder")
	})
}
