package readstore

import (
	"context"

	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type ItemRow struct {
	ID              uuid.UUID
	LibraryID       uuid.UUID
	Title           string
	Author          string
	ISBN            *string
	TotalCopies     int
	AvailableCopies int
}

type ItemReadStore struct {
	db db.DBTX
}

func NewItemReadStore(dbtx db.DBTX) *ItemReadStore {
	return &ItemReadStore{db: dbtx}
}

func (s *ItemReadStore) FindByID(ctx context.Context, id uuid.UUID) (*ItemRow, error) {
	query, args, err := qb.Select("id", "library_id", "title", "author", "isbn", "total_copies", "available_copies").
		From("catalog_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build item select", err)
	}

	var row ItemRow
	if err := s.db.QueryRow(ctx, query, args...).Scan(
		&row.ID, &row.LibraryID, &row.Title, &row.Author, &row.ISBN,
		&row.TotalCopies, &row.AvailableCopies,
	); err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("item not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select item", err)
	}
	return &row, nil
}
