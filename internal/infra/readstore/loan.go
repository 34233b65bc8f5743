package readstore

import (
	"context"

	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"
	"circulation-service/internal/usecase/queries"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var loanViewColumns = []string{
	"l.id", "l.hold_id", "l.item_id", "ci.title", "l.user_id", "l.library_id", "l.status",
	"l.reserved_at", "l.borrowed_at", "l.due_date", "l.returned_at",
	"l.duration_days", "l.extensions", "l.late_fee_cents", "l.feedback", "l.rating",
}

type LoanReadStore struct {
	db db.DBTX
}

func NewLoanReadStore(dbtx db.DBTX) *LoanReadStore {
	return &LoanReadStore{db: dbtx}
}

func (s *LoanReadStore) loanSelect() sq.SelectBuilder {
	return qb.Select(loanViewColumns...).
		From("loans l").
		Join("catalog_items ci ON ci.id = l.item_id")
}

func (s *LoanReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.LoanView, error) {
	query, args, err := s.loanSelect().Where(sq.Eq{"l.id": id}).ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build loan view select", err)
	}

	view, err := scanLoanView(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("loan not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select loan view", err)
	}
	return view, nil
}

func (s *LoanReadStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*queries.LoanView, error) {
	query, args, err := s.loanSelect().
		Where(sq.Eq{"l.user_id": userID}).
		OrderBy("l.reserved_at DESC").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build loan list select", err)
	}
	return s.list(ctx, query, args)
}

func (s *LoanReadStore) FindActiveByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*queries.LoanView, error) {
	query, args, err := s.loanSelect().
		Where(sq.Eq{
			"l.library_id": libraryID,
			"l.status":     []string{"RESERVED", "BORROWED", "IN_PROGRESS"},
		}).
		OrderBy("l.due_date ASC").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build active loan select", err)
	}
	return s.list(ctx, query, args)
}

func (s *LoanReadStore) list(ctx context.Context, query string, args []any) ([]*queries.LoanView, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, infra.WrapRepoErr("list loans", err)
	}
	defer rows.Close()

	views := make([]*queries.LoanView, 0)
	for rows.Next() {
		view, err := scanLoanView(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("scan loan view", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("iterate loan views", err)
	}
	return views, nil
}

func scanLoanView(row pgx.Row) (*queries.LoanView, error) {
	var v queries.LoanView
	if err := row.Scan(
		&v.ID, &v.HoldID, &v.ItemID, &v.ItemTitle, &v.UserID, &v.LibraryID, &v.Status,
		&v.ReservedAt, &v.BorrowedAt, &v.DueDate, &v.ReturnedAt,
		&v.DurationDays, &v.Extensions, &v.LateFeeCents, &v.Feedback, &v.Rating,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
