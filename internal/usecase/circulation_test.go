//go:build unit

package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/infra/memory"
	"circulation-service/internal/pkg/clock"
	"circulation-service/internal/pkg/config"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type recordedEvent struct {
	name     string
	n        usecase.Notification
	deadline time.Time
	daysLeft int
	reason   string
}

// recorderNotifier captures outbound notifications for assertions.
type recorderNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorderNotifier) add(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorderNotifier) HoldCreated(_ context.Context, n usecase.Notification) {
	r.add(recordedEvent{name: "hold_created", n: n})
}

func (r *recorderNotifier) HoldConfirmed(_ context.Context, n usecase.Notification, pickupDeadline time.Time) {
	r.add(recordedEvent{name: "hold_confirmed", n: n, deadline: pickupDeadline})
}

func (r *recorderNotifier) PickupReminder(_ context.Context, n usecase.Notification) {
	r.add(recordedEvent{name: "pickup_reminder", n: n})
}

func (r *recorderNotifier) ReturnReminder(_ context.Context, n usecase.Notification, daysLeft int) {
	r.add(recordedEvent{name: "return_reminder", n: n, daysLeft: daysLeft})
}

func (r *recorderNotifier) HoldRejected(_ context.Context, n usecase.Notification, reason string) {
	r.add(recordedEvent{name: "hold_rejected", n: n, reason: reason})
}

func (r *recorderNotifier) HoldExpired(_ context.Context, n usecase.Notification) {
	r.add(recordedEvent{name: "hold_expired", n: n})
}

func (r *recorderNotifier) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.name
	}
	return names
}

func (r *recorderNotifier) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	store     *memory.Store
	clock     *clock.MockClock
	notifier  *recorderNotifier
	commands  usecase.CirculationCommands
	cfg       config.CirculationConfig
	libraryID uuid.UUID
	patron    shared.UserSnapshot
	librarian shared.UserSnapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	libID := uuid.New()
	f := &fixture{
		store:     memory.NewStore(),
		clock:     clock.NewMockClock(baseTime),
		notifier:  &recorderNotifier{},
		cfg:       config.NewTestConfig().Circulation,
		libraryID: libID,
		patron:    shared.UserSnapshot{ID: uuid.New(), Email: "patron@example.com", Role: "patron", LibraryID: &libID},
		librarian: shared.UserSnapshot{ID: uuid.New(), Email: "desk@example.com", Role: "librarian", LibraryID: &libID},
	}
	f.store.SeedUser(f.patron)
	f.store.SeedUser(f.librarian)
	f.commands = usecase.NewCirculationCommands(
		f.store, f.notifier, f.clock, f.cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func (f *fixture) seedPatron() shared.UserSnapshot {
	u := shared.UserSnapshot{ID: uuid.New(), Email: "other@example.com", Role: "patron", LibraryID: &f.libraryID}
	f.store.SeedUser(u)
	return u
}

func (f *fixture) seedItem(t *testing.T, copies int, isbn *string) *catalog.Item {
	t.Helper()
	item, err := catalog.NewItem(f.libraryID, "Dune", "Frank Herbert", isbn, copies)
	require.NoError(t, err)
	f.store.SeedItem(item)
	return item
}

func (f *fixture) createHold(t *testing.T, userID, itemID uuid.UUID) *hold.Hold {
	t.Helper()
	h, err := f.commands.CreateHold(context.Background(), itemID, userID)
	require.NoError(t, err)
	return h
}

func (f *fixture) confirmHold(t *testing.T, holdID uuid.UUID) *hold.Hold {
	t.Helper()
	h, err := f.commands.ConfirmHold(context.Background(), holdID, f.librarian.ID, "")
	require.NoError(t, err)
	return h
}

func strPtr(s string) *string { return &s }

func TestCreateHold(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending hold with its shadow loan", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 2, nil)

		h := f.createHold(t, f.patron.ID, item.ID())

		assert.Equal(t, hold.StatusPending, h.Status())
		assert.Equal(t, baseTime, h.RequestedAt())
		assert.False(t, h.CopyLocked())

		l := f.store.LoanByHoldID(h.ID())
		require.NotNil(t, l)
		assert.Equal(t, loan.StatusReserved, l.Status())
		assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), l.DueDate())

		// The pool is untouched until a librarian confirms.
		assert.Equal(t, 2, f.store.Item(item.ID()).AvailableCopies())
		assert.Equal(t, []string{"hold_created"}, f.notifier.names())
		assert.Equal(t, f.patron.Email, f.notifier.last().n.UserEmail)
	})

	t.Run("unknown item or user", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)

		_, err := f.commands.CreateHold(ctx, uuid.New(), f.patron.ID)
		assert.True(t, errs.Is(err, usecase.ErrNotFound), "unexpected error: %v", err)

		_, err = f.commands.CreateHold(ctx, item.ID(), uuid.New())
		assert.True(t, errs.Is(err, usecase.ErrNotFound), "unexpected error: %v", err)
	})

	t.Run("second open hold for the same item is a duplicate", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 3, nil)
		f.createHold(t, f.patron.ID, item.ID())

		_, err := f.commands.CreateHold(ctx, item.ID(), f.patron.ID)
		assert.True(t, errs.Is(err, usecase.ErrDuplicateRequest), "unexpected error: %v", err)
	})

	t.Run("different item with the same isbn is a duplicate", func(t *testing.T) {
		f := newFixture(t)
		first := f.seedItem(t, 1, strPtr("978-0-441-17271-9"))
		second := f.seedItem(t, 1, strPtr("978-0-441-17271-9"))
		f.createHold(t, f.patron.ID, first.ID())

		_, err := f.commands.CreateHold(ctx, second.ID(), f.patron.ID)
		assert.True(t, errs.Is(err, usecase.ErrDuplicateRequest), "unexpected error: %v", err)
	})

	t.Run("confirmed hold does not block a new request", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 2, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		_, err := f.commands.CreateHold(ctx, item.ID(), f.patron.ID)
		assert.NoError(t, err)
	})

	t.Run("pending limit is enforced per user", func(t *testing.T) {
		f := newFixture(t)
		first := f.seedItem(t, 1, nil)
		second := f.seedItem(t, 1, nil)
		third := f.seedItem(t, 1, nil)
		f.createHold(t, f.patron.ID, first.ID())
		f.createHold(t, f.patron.ID, second.ID())

		_, err := f.commands.CreateHold(ctx, third.ID(), f.patron.ID)
		assert.True(t, errs.Is(err, usecase.ErrLimitExceeded), "unexpected error: %v", err)

		// Another user is unaffected.
		other := f.seedPatron()
		_, err = f.commands.CreateHold(ctx, third.ID(), other.ID)
		assert.NoError(t, err)
	})
}

func TestConfirmHold(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms, locks a copy and starts the loan", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 2, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		f.clock.Add(24 * time.Hour)
		confirmed, err := f.commands.ConfirmHold(ctx, h.ID(), f.librarian.ID, "shelf B3")
		require.NoError(t, err)

		assert.Equal(t, hold.StatusConfirmed, confirmed.Status())
		assert.True(t, confirmed.CopyLocked())
		require.NotNil(t, confirmed.PickupDeadline())
		assert.Equal(t, f.clock.Now().Add(f.cfg.PickupWindow), *confirmed.PickupDeadline())
		require.NotNil(t, confirmed.Comment())
		assert.Equal(t, "shelf B3", *confirmed.Comment())

		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())

		l := f.store.LoanByHoldID(h.ID())
		require.NotNil(t, l)
		assert.Equal(t, loan.StatusInProgress, l.Status())
		// Confirmation restarts the loan window from today.
		assert.Equal(t, time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC), l.DueDate())

		last := f.notifier.last()
		assert.Equal(t, "hold_confirmed", last.name)
		assert.Equal(t, *confirmed.PickupDeadline(), last.deadline)
	})

	t.Run("patrons cannot confirm", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		_, err := f.commands.ConfirmHold(ctx, h.ID(), f.patron.ID, "")
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})

	t.Run("staff of another library cannot confirm", func(t *testing.T) {
		f := newFixture(t)
		otherLib := uuid.New()
		outsider := shared.UserSnapshot{ID: uuid.New(), Email: "x@example.com", Role: "librarian", LibraryID: &otherLib}
		f.store.SeedUser(outsider)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		_, err := f.commands.ConfirmHold(ctx, h.ID(), outsider.ID, "")
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})

	t.Run("double confirm is rejected", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 2, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		_, err := f.commands.ConfirmHold(ctx, h.ID(), f.librarian.ID, "")
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
	})

	t.Run("unknown hold", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.commands.ConfirmHold(ctx, uuid.New(), f.librarian.ID, "")
		assert.True(t, errs.Is(err, usecase.ErrNotFound), "unexpected error: %v", err)
	})

	t.Run("last copy contention rolls the hold back", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		other := f.seedPatron()
		first := f.createHold(t, f.patron.ID, item.ID())
		second := f.createHold(t, other.ID, item.ID())

		f.confirmHold(t, first.ID())

		_, err := f.commands.ConfirmHold(ctx, second.ID(), f.librarian.ID, "")
		assert.True(t, errs.Is(err, usecase.ErrCapacityExceeded), "unexpected error: %v", err)

		// Nothing from the failed confirmation sticks.
		stored := f.store.Hold(second.ID())
		assert.Equal(t, hold.StatusPending, stored.Status())
		assert.False(t, stored.CopyLocked())
		assert.Equal(t, loan.StatusReserved, f.store.LoanByHoldID(second.ID()).Status())
		assert.Equal(t, 0, f.store.Item(item.ID()).AvailableCopies())
	})
}

func TestRejectHold(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a pending hold and cancels the loan", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		rejected, err := f.commands.RejectHold(ctx, h.ID(), f.librarian.ID, "damaged copy")
		require.NoError(t, err)

		assert.Equal(t, hold.StatusRejected, rejected.Status())
		assert.Equal(t, loan.StatusCancelled, f.store.LoanByHoldID(h.ID()).Status())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())

		last := f.notifier.last()
		assert.Equal(t, "hold_rejected", last.name)
		assert.Equal(t, "damaged copy", last.reason)
	})

	t.Run("confirmed hold cannot be rejected", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		_, err := f.commands.RejectHold(ctx, h.ID(), f.librarian.ID, "too late")
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})
}

func TestCancelHold(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels a pending hold", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		cancelled, err := f.commands.CancelHold(ctx, h.ID(), f.patron.ID)
		require.NoError(t, err)

		assert.Equal(t, hold.StatusCancelled, cancelled.Status())
		assert.Equal(t, loan.StatusCancelled, f.store.LoanByHoldID(h.ID()).Status())
	})

	t.Run("only the owner may cancel", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		_, err := f.commands.CancelHold(ctx, h.ID(), f.seedPatron().ID)
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})

	t.Run("cancelling a confirmed hold releases the copy and the loan", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		require.Equal(t, 0, f.store.Item(item.ID()).AvailableCopies())

		cancelled, err := f.commands.CancelHold(ctx, h.ID(), f.patron.ID)
		require.NoError(t, err)

		assert.Equal(t, hold.StatusCancelled, cancelled.Status())
		assert.False(t, cancelled.CopyLocked())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
		assert.Equal(t, loan.StatusCancelled, f.store.LoanByHoldID(h.ID()).Status())
	})

	t.Run("cancelled hold's loan cannot return the copy twice", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 2, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		other := f.seedPatron()
		h2 := f.createHold(t, other.ID, item.ID())
		f.confirmHold(t, h2.ID())
		require.Equal(t, 0, f.store.Item(item.ID()).AvailableCopies())

		_, err := f.commands.CancelHold(ctx, h.ID(), f.patron.ID)
		require.NoError(t, err)
		require.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())

		// The copy came back with the cancellation; returning the settled
		// loan must not free it again while the other hold still has one.
		_, err = f.commands.ReturnLoan(ctx, f.store.LoanByHoldID(h.ID()).ID(), f.librarian.ID)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
		assert.True(t, f.store.Hold(h2.ID()).CopyLocked())
	})
}

func TestMarkBorrowingStarted(t *testing.T) {
	ctx := context.Background()

	t.Run("hands the copy over without touching the pool", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())

		started, err := f.commands.MarkBorrowingStarted(ctx, h.ID(), f.librarian.ID)
		require.NoError(t, err)

		assert.Equal(t, hold.StatusBorrowingStarted, started.Status())
		assert.False(t, started.CopyLocked())
		assert.Equal(t, 0, f.store.Item(item.ID()).AvailableCopies())
	})

	t.Run("pending hold cannot start borrowing", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())

		_, err := f.commands.MarkBorrowingStarted(ctx, h.ID(), f.librarian.ID)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})
}

func TestReturnLoan(t *testing.T) {
	ctx := context.Background()

	borrow := func(t *testing.T, f *fixture, copies int) (*catalog.Item, *hold.Hold, *loan.Loan) {
		t.Helper()
		item := f.seedItem(t, copies, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		_, err := f.commands.MarkBorrowingStarted(ctx, h.ID(), f.librarian.ID)
		require.NoError(t, err)
		return item, h, f.store.LoanByHoldID(h.ID())
	}

	t.Run("on time return releases the copy without a fee", func(t *testing.T) {
		f := newFixture(t)
		item, _, l := borrow(t, f, 1)

		f.clock.Add(5 * 24 * time.Hour)
		returned, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)

		assert.Equal(t, loan.StatusReturned, returned.Status())
		assert.Zero(t, returned.LateFeeCents())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
	})

	t.Run("late return accrues the daily fee", func(t *testing.T) {
		f := newFixture(t)
		_, _, l := borrow(t, f, 1)

		// Due 14 days out; three days past that.
		f.clock.Set(l.DueDate().AddDate(0, 0, 3).Add(2 * time.Hour))
		returned, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(3*loan.LateFeeCentsPerDay), returned.LateFeeCents())
	})

	t.Run("return straight from confirmed releases the copy once", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		l := f.store.LoanByHoldID(h.ID())

		returned, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)

		assert.Equal(t, loan.StatusReturned, returned.Status())
		stored := f.store.Hold(h.ID())
		assert.Equal(t, hold.StatusBorrowingStarted, stored.Status())
		assert.False(t, stored.CopyLocked())
		assert.Equal(t, 1, f.store.Item(item.ID()).AvailableCopies())
	})

	t.Run("reserved loan cannot be returned", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		l := f.store.LoanByHoldID(h.ID())

		_, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})

	t.Run("patrons cannot process returns", func(t *testing.T) {
		f := newFixture(t)
		_, _, l := borrow(t, f, 1)

		_, err := f.commands.ReturnLoan(ctx, l.ID(), f.patron.ID)
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})
}

func TestCloseLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.seedItem(t, 1, nil)
	h := f.createHold(t, f.patron.ID, item.ID())
	f.confirmHold(t, h.ID())
	l := f.store.LoanByHoldID(h.ID())

	_, err := f.commands.CloseLoan(ctx, l.ID(), f.librarian.ID)
	assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)

	_, err = f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
	require.NoError(t, err)

	closed, err := f.commands.CloseLoan(ctx, l.ID(), f.librarian.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusClosed, closed.Status())
}

func TestFlagNotReturned(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *loan.Loan) {
		t.Helper()
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		return f, f.store.LoanByHoldID(h.ID())
	}

	t.Run("overdue loan gets blocked", func(t *testing.T) {
		f, l := setup(t)
		f.clock.Set(l.DueDate().AddDate(0, 0, 2))

		flagged, err := f.commands.FlagNotReturned(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusBlocked, flagged.Status())
	})

	t.Run("loan still in its window gets a reminder instead", func(t *testing.T) {
		f, l := setup(t)

		flagged, err := f.commands.FlagNotReturned(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)

		assert.Equal(t, loan.StatusInProgress, flagged.Status())
		last := f.notifier.last()
		assert.Equal(t, "return_reminder", last.name)
		assert.Equal(t, 14, last.daysLeft)
	})

	t.Run("returned loan cannot be flagged", func(t *testing.T) {
		f, l := setup(t)
		_, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)

		_, err = f.commands.FlagNotReturned(ctx, l.ID(), f.librarian.ID)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})
}

func TestExtendLoan(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *loan.Loan) {
		t.Helper()
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		return f, f.store.LoanByHoldID(h.ID())
	}

	t.Run("owner extends twice at most", func(t *testing.T) {
		f, l := setup(t)
		originalDue := l.DueDate()

		extended, err := f.commands.ExtendLoan(ctx, l.ID(), f.patron.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, originalDue.AddDate(0, 0, 7), extended.DueDate())

		_, err = f.commands.ExtendLoan(ctx, l.ID(), f.patron.ID, 7)
		require.NoError(t, err)

		_, err = f.commands.ExtendLoan(ctx, l.ID(), f.patron.ID, 7)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})

	t.Run("non-positive days are a validation error", func(t *testing.T) {
		f, l := setup(t)
		_, err := f.commands.ExtendLoan(ctx, l.ID(), f.patron.ID, 0)
		assert.True(t, errs.Is(err, usecase.ErrDomainValidation), "unexpected error: %v", err)
	})

	t.Run("only the borrower may extend", func(t *testing.T) {
		f, l := setup(t)
		_, err := f.commands.ExtendLoan(ctx, l.ID(), f.seedPatron().ID, 7)
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})

	t.Run("overdue loan cannot be extended", func(t *testing.T) {
		f, l := setup(t)
		f.clock.Set(l.DueDate().AddDate(0, 0, 1))
		_, err := f.commands.ExtendLoan(ctx, l.ID(), f.patron.ID, 7)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})
}

func TestRecordFeedback(t *testing.T) {
	ctx := context.Background()

	setupReturned := func(t *testing.T) (*fixture, *loan.Loan) {
		t.Helper()
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		l := f.store.LoanByHoldID(h.ID())
		_, err := f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
		require.NoError(t, err)
		return f, l
	}

	t.Run("feedback closes the returned loan", func(t *testing.T) {
		f, l := setupReturned(t)

		updated, err := f.commands.RecordFeedback(ctx, l.ID(), f.patron.ID, "loved it", 5)
		require.NoError(t, err)

		assert.Equal(t, loan.StatusClosed, updated.Status())
		require.NotNil(t, updated.Feedback())
		assert.Equal(t, "loved it", *updated.Feedback())
		require.NotNil(t, updated.Rating())
		assert.Equal(t, 5, *updated.Rating())
	})

	t.Run("only the borrower may leave feedback", func(t *testing.T) {
		f, l := setupReturned(t)
		_, err := f.commands.RecordFeedback(ctx, l.ID(), f.seedPatron().ID, "nope", 3)
		assert.True(t, errs.Is(err, usecase.ErrForbidden), "unexpected error: %v", err)
	})

	t.Run("rating out of range", func(t *testing.T) {
		f, l := setupReturned(t)
		_, err := f.commands.RecordFeedback(ctx, l.ID(), f.patron.ID, "", 6)
		assert.True(t, errs.Is(err, usecase.ErrDomainValidation), "unexpected error: %v", err)
	})

	t.Run("active loan rejects feedback", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedItem(t, 1, nil)
		h := f.createHold(t, f.patron.ID, item.ID())
		f.confirmHold(t, h.ID())
		l := f.store.LoanByHoldID(h.ID())

		_, err := f.commands.RecordFeedback(ctx, l.ID(), f.patron.ID, "early", 4)
		assert.True(t, errs.Is(err, usecase.ErrInvalidState), "unexpected error: %v", err)
	})
}

func TestInventoryInvariantAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.seedItem(t, 2, nil)

	check := func() {
		stored := f.store.Item(item.ID())
		require.GreaterOrEqual(t, stored.AvailableCopies(), 0)
		require.LessOrEqual(t, stored.AvailableCopies(), stored.TotalCopies())
	}

	h := f.createHold(t, f.patron.ID, item.ID())
	check()
	f.confirmHold(t, h.ID())
	check()
	_, err := f.commands.MarkBorrowingStarted(ctx, h.ID(), f.librarian.ID)
	require.NoError(t, err)
	check()

	l := f.store.LoanByHoldID(h.ID())
	_, err = f.commands.ReturnLoan(ctx, l.ID(), f.librarian.ID)
	require.NoError(t, err)
	check()

	assert.Equal(t, 2, f.store.Item(item.ID()).AvailableCopies())
}
