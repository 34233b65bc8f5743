package repository

import (
	"context"
	"time"

	"circulation-service/internal/domain/loan"
	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const loansTable = "loans"

var loanColumns = []string{
	"id", "hold_id", "user_id", "item_id", "library_id", "status",
	"reserved_at", "borrowed_at", "due_date", "returned_at",
	"duration_days", "extensions", "late_fee_cents", "feedback", "rating",
}

type LoanRepository struct {
	db db.DBTX
}

func NewLoanRepository(dbtx db.DBTX) *LoanRepository {
	return &LoanRepository{db: dbtx}
}

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	query, args, err := qb.Insert(loansTable).
		Columns(loanColumns...).
		Values(
			l.ID(), l.HoldID(), l.UserID(), l.ItemID(), l.LibraryID(), string(l.Status()),
			l.ReservedAt(), l.BorrowedAt(), l.DueDate(), l.ReturnedAt(),
			l.DurationDays(), l.Extensions(), l.LateFeeCents(), l.Feedback(), l.Rating(),
		).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build loan insert", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return infra.WrapRepoErr("insert loan", err)
	}
	return nil
}

func (r *LoanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build loan select", err)
	}

	l, err := scanLoan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("loan not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select loan for update", err)
	}
	return l, nil
}

// GetByHoldIDForUpdate finds the loan paired with a hold. A hold has at
// most one loan; the ordering guards against historical duplicates.
func (r *LoanRepository) GetByHoldIDForUpdate(ctx context.Context, holdID uuid.UUID) (*loan.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTable).
		Where(sq.Eq{"hold_id": holdID}).
		OrderBy("reserved_at DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build loan select by hold", err)
	}

	l, err := scanLoan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("loan not found for hold", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select loan by hold", err)
	}
	return l, nil
}

func (r *LoanRepository) Update(ctx context.Context, l *loan.Loan) error {
	query, args, err := qb.Update(loansTable).
		Set("status", string(l.Status())).
		Set("borrowed_at", l.BorrowedAt()).
		Set("due_date", l.DueDate()).
		Set("returned_at", l.ReturnedAt()).
		Set("extensions", l.Extensions()).
		Set("late_fee_cents", l.LateFeeCents()).
		Set("feedback", l.Feedback()).
		Set("rating", l.Rating()).
		Where(sq.Eq{"id": l.ID()}).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build loan update", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return infra.WrapRepoErr("update loan", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr("loan not found", infra.KindNotFound)
	}
	return nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var (
		id, holdID, userID, itemID, libraryID uuid.UUID
		status                                string
		reservedAt, dueDate                   time.Time
		borrowedAt, returnedAt                pgtype.Timestamptz
		durationDays, extensions              int
		lateFeeCents                          int64
		feedback                              pgtype.Text
		rating                                pgtype.Int4
	)
	if err := row.Scan(
		&id, &holdID, &userID, &itemID, &libraryID, &status,
		&reservedAt, &borrowedAt, &dueDate, &returnedAt,
		&durationDays, &extensions, &lateFeeCents, &feedback, &rating,
	); err != nil {
		return nil, err
	}
	return loan.ReconstructLoan(
		id, holdID, userID, itemID, libraryID,
		loan.Status(status),
		reservedAt,
		pgconv.TimePtrFromPgtype(borrowedAt),
		dueDate,
		pgconv.TimePtrFromPgtype(returnedAt),
		durationDays, extensions, lateFeeCents,
		pgconv.StringPtrFromPgtype(feedback),
		pgconv.IntPtrFromPgtype(rating),
	), nil
}
