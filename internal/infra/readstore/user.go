package readstore

import (
	"context"

	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type UserRow struct {
	ID        uuid.UUID
	Email     string
	Role      string
	LibraryID *uuid.UUID
}

type UserReadStore struct {
	db db.DBTX
}

func NewUserReadStore(dbtx db.DBTX) *UserReadStore {
	return &UserReadStore{db: dbtx}
}

func (s *UserReadStore) FindByID(ctx context.Context, id uuid.UUID) (*UserRow, error) {
	query, args, err := qb.Select("id", "email", "role", "library_id").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build user select", err)
	}

	var row UserRow
	if err := s.db.QueryRow(ctx, query, args...).Scan(&row.ID, &row.Email, &row.Role, &row.LibraryID); err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("user not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select user", err)
	}
	return &row, nil
}
