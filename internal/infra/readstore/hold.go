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

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var holdViewColumns = []string{
	"h.id", "h.item_id", "ci.title", "h.user_id", "h.library_id", "h.status",
	"h.requested_at", "h.confirmed_at", "h.pickup_deadline", "h.copy_locked", "h.comment",
}

type HoldReadStore struct {
	db db.DBTX
}

func NewHoldReadStore(dbtx db.DBTX) *HoldReadStore {
	return &HoldReadStore{db: dbtx}
}

func (s *HoldReadStore) holdSelect() sq.SelectBuilder {
	return qb.Select(holdViewColumns...).
		From("holds h").
		Join("catalog_items ci ON ci.id = h.item_id")
}

func (s *HoldReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.HoldView, error) {
	query, args, err := s.holdSelect().Where(sq.Eq{"h.id": id}).ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build hold view select", err)
	}

	view, err := scanHoldView(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("hold not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select hold view", err)
	}
	return view, nil
}

func (s *HoldReadStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*queries.HoldView, error) {
	query, args, err := s.holdSelect().
		Where(sq.Eq{"h.user_id": userID}).
		OrderBy("h.requested_at DESC").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build hold list select", err)
	}
	return s.list(ctx, query, args)
}

func (s *HoldReadStore) FindPendingByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*queries.HoldView, error) {
	query, args, err := s.holdSelect().
		Where(sq.Eq{"h.library_id": libraryID, "h.status": "PENDING"}).
		OrderBy("h.requested_at ASC").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build pending hold select", err)
	}
	return s.list(ctx, query, args)
}

func (s *HoldReadStore) list(ctx context.Context, query string, args []any) ([]*queries.HoldView, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, infra.WrapRepoErr("list holds", err)
	}
	defer rows.Close()

	views := make([]*queries.HoldView, 0)
	for rows.Next() {
		view, err := scanHoldView(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("scan hold view", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("iterate hold views", err)
	}
	return views, nil
}

func scanHoldView(row pgx.Row) (*queries.HoldView, error) {
	var v queries.HoldView
	if err := row.Scan(
		&v.ID, &v.ItemID, &v.ItemTitle, &v.UserID, &v.LibraryID, &v.Status,
		&v.RequestedAt, &v.ConfirmedAt, &v.PickupDeadline, &v.CopyLocked, &v.Comment,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
