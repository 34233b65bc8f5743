package repository

import (
	"context"
	"errors"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemsTable = "catalog_items"

var itemColumns = []string{
	"id", "library_id", "title", "author", "isbn",
	"total_copies", "available_copies", "version",
}

type ItemRepository struct {
	db db.DBTX
}

func NewItemRepository(dbtx db.DBTX) *ItemRepository {
	return &ItemRepository{db: dbtx}
}

func (r *ItemRepository) Create(ctx context.Context, item *catalog.Item) error {
	query, args, err := qb.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			item.ID(), item.LibraryID(), item.Title(), item.Author(), item.ISBN(),
			item.TotalCopies(), item.AvailableCopies(), item.Version(),
		).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build item insert", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("item already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("insert item", err)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	query, args, err := qb.Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build item select", err)
	}

	item, err := scanItem(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("item not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select item", err)
	}
	return item, nil
}

// TryReserveCopy decrements the available counter in a single conditional
// statement, so two concurrent confirms can never both take the last copy.
// Zero affected rows means the pool is empty.
func (r *ItemRepository) TryReserveCopy(ctx context.Context, id uuid.UUID) error {
	query, args, err := qb.Update(itemsTable).
		Set("available_copies", sq.Expr("available_copies - 1")).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": id}).
		Where(sq.Expr("available_copies > 0")).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build copy reserve", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return infra.WrapRepoErr("reserve copy", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr("no copies available", infra.KindConflict)
	}
	return nil
}

// ReleaseCopy puts one copy back, capped at the item's total. The cap makes
// a stray double release harmless at the counter level.
func (r *ItemRepository) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	query, args, err := qb.Update(itemsTable).
		Set("available_copies", sq.Expr("LEAST(total_copies, available_copies + 1)")).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build copy release", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return infra.WrapRepoErr("release copy", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr("item not found", infra.KindNotFound)
	}
	return nil
}

func scanItem(row pgx.Row) (*catalog.Item, error) {
	var (
		id, libraryID                uuid.UUID
		title, author                string
		isbn                         pgtype.Text
		totalCopies, availableCopies int
		version                      int64
	)
	if err := row.Scan(
		&id, &libraryID, &title, &author, &isbn,
		&totalCopies, &availableCopies, &version,
	); err != nil {
		return nil, err
	}
	return catalog.ReconstructItem(
		id, libraryID, title, author, pgconv.StringPtrFromPgtype(isbn),
		totalCopies, availableCopies, version,
	), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
