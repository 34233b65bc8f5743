package uow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"circulation-service/internal/infra/db"
	"circulation-service/internal/infra/readstore"
	"circulation-service/internal/infra/repository"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"
)

var (
	errTransactionBegin   = errs.New("failed to begin transaction")
	errTransactionCommit  = errs.New("failed to commit transaction")
	errMaxRetriesExceeded = errs.New("transaction failed after max retries")
)

type PostgresUoW struct {
	pool *pgxpool.Pool
}

func NewPostgresUoW(pool *pgxpool.Pool) shared.UnitOfWork {
	return &PostgresUoW{pool: pool}
}

// ReadCommitted is enough here: the copy counter is guarded by a
// conditional update and holds/loans by row locks, not by snapshot
// isolation.
func (u *PostgresUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return u.runInTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (u *PostgresUoW) Reads() shared.Reads {
	return &reads{dbtx: u.pool}
}

// Avoids defer accumulation in retry loops to prevent connection leaks
func (u *PostgresUoW) runInTxWithOptions(ctx context.Context, options pgx.TxOptions, fn func(ctx context.Context, tx shared.Tx) error) error {
	const maxRetries = 3
	base := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		pgxTx, err := u.pool.BeginTx(ctx, options)
		if err != nil {
			return errs.Mark(err, errTransactionBegin)
		}

		tx := &pgTx{dbtx: pgxTx}

		err = fn(ctx, tx)
		if err == nil {
			if err = pgxTx.Commit(ctx); err == nil {
				return nil
			}
			err = errs.Mark(err, errTransactionCommit)
		}

		if rollbackErr := pgxTx.Rollback(ctx); rollbackErr != nil {
			if !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				slog.Warn("rollback failed", "attempt", attempt+1, "error", rollbackErr.Error())
			}
		}

		if !shouldRetry(err, attempt, maxRetries) {
			if attempt == maxRetries {
				slog.Error("transaction failed after max retries",
					"attempts", attempt+1,
					"error", err.Error())
				return errs.Mark(err, errMaxRetriesExceeded)
			}
			return err
		}

		waitTime := calculateBackoff(attempt, base)

		slog.Warn("retrying transaction due to retryable error",
			"attempt", attempt+1,
			"wait_ms", waitTime.Milliseconds(),
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return errMaxRetriesExceeded
}

func shouldRetry(err error, attempt, maxRetries int) bool {
	return isRetryableError(err) && attempt < maxRetries
}

func calculateBackoff(attempt int, base time.Duration) time.Duration {
	waitTime := time.Duration(1<<attempt) * base
	jitter := cryptoRandInt63n(int64(waitTime / 5))
	return waitTime + time.Duration(jitter)
}

func cryptoRandInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	uval := binary.BigEndian.Uint64(buf[:]) & 0x7FFFFFFFFFFFFFFF
	return int64(uval) % n
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgErrCodeSerializationFailure, pgErrCodeDeadlockDetected:
		return true
	default:
		return false
	}
}

type pgTx struct {
	dbtx db.DBTX

	// Lazy-initialized repositories
	holdRepo shared.HoldRepository
	loanRepo shared.LoanRepository
	itemRepo shared.ItemRepository
}

func (t *pgTx) Holds() shared.HoldRepository {
	if t.holdRepo == nil {
		t.holdRepo = repository.NewHoldRepository(t.dbtx)
	}
	return t.holdRepo
}

func (t *pgTx) Loans() shared.LoanRepository {
	if t.loanRepo == nil {
		t.loanRepo = repository.NewLoanRepository(t.dbtx)
	}
	return t.loanRepo
}

func (t *pgTx) Items() shared.ItemRepository {
	if t.itemRepo == nil {
		t.itemRepo = repository.NewItemRepository(t.dbtx)
	}
	return t.itemRepo
}

type reads struct {
	dbtx db.DBTX

	// Lazy-initialized readstores
	userStore  *readstore.UserReadStore
	itemStore  *readstore.ItemReadStore
	sweepStore *readstore.SweepReadStore
}

func (r *reads) UserByID(ctx context.Context, id uuid.UUID) (*shared.UserSnapshot, error) {
	if r.userStore == nil {
		r.userStore = readstore.NewUserReadStore(r.dbtx)
	}

	row, err := r.userStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &shared.UserSnapshot{
		ID:        row.ID,
		Email:     row.Email,
		LibraryID: row.LibraryID,
		Role:      row.Role,
	}, nil
}

func (r *reads) ItemByID(ctx context.Context, id uuid.UUID) (*shared.ItemSnapshot, error) {
	if r.itemStore == nil {
		r.itemStore = readstore.NewItemReadStore(r.dbtx)
	}

	row, err := r.itemStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &shared.ItemSnapshot{
		ID:              row.ID,
		LibraryID:       row.LibraryID,
		Title:           row.Title,
		ISBN:            row.ISBN,
		TotalCopies:     row.TotalCopies,
		AvailableCopies: row.AvailableCopies,
	}, nil
}

func (r *reads) ExpiredHoldIDs(ctx context.Context, now time.Time, requestExpiry time.Duration) ([]uuid.UUID, error) {
	if r.sweepStore == nil {
		r.sweepStore = readstore.NewSweepReadStore(r.dbtx)
	}
	return r.sweepStore.ExpiredHoldIDs(ctx, now, requestExpiry)
}

func (r *reads) ConfirmedHoldIDsNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]uuid.UUID, error) {
	if r.sweepStore == nil {
		r.sweepStore = readstore.NewSweepReadStore(r.dbtx)
	}
	return r.sweepStore.ConfirmedHoldIDsNeedingReminder(ctx, now, lead)
}
