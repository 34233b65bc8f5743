package repository

import (
	"context"
	"time"

	"circulation-service/internal/domain/hold"
	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"
	"circulation-service/internal/pkg/pgconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const holdsTable = "holds"

var holdColumns = []string{
	"id", "item_id", "user_id", "library_id", "status",
	"requested_at", "confirmed_at", "pickup_deadline",
	"copy_locked", "reminder_sent", "comment",
}

type HoldRepository struct {
	db db.DBTX
}

func NewHoldRepository(dbtx db.DBTX) *HoldRepository {
	return &HoldRepository{db: dbtx}
}

func (r *HoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	query, args, err := qb.Insert(holdsTable).
		Columns(holdColumns...).
		Values(
			h.ID(), h.ItemID(), h.UserID(), h.LibraryID(), string(h.Status()),
			h.RequestedAt(), h.ConfirmedAt(), h.PickupDeadline(),
			h.CopyLocked(), h.ReminderSent(), h.Comment(),
		).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build hold insert", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return infra.WrapRepoErr("insert hold", err)
	}
	return nil
}

func (r *HoldRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*hold.Hold, error) {
	query, args, err := qb.Select(holdColumns...).
		From(holdsTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, infra.WrapRepoErr("build hold select", err)
	}

	h, err := scanHold(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.NewRepoErr("hold not found", infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("select hold for update", err)
	}
	return h, nil
}

func (r *HoldRepository) Update(ctx context.Context, h *hold.Hold) error {
	query, args, err := qb.Update(holdsTable).
		Set("status", string(h.Status())).
		Set("confirmed_at", h.ConfirmedAt()).
		Set("pickup_deadline", h.PickupDeadline()).
		Set("copy_locked", h.CopyLocked()).
		Set("reminder_sent", h.ReminderSent()).
		Set("comment", h.Comment()).
		Where(sq.Eq{"id": h.ID()}).
		ToSql()
	if err != nil {
		return infra.WrapRepoErr("build hold update", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return infra.WrapRepoErr("update hold", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr("hold not found", infra.KindNotFound)
	}
	return nil
}

func (r *HoldRepository) CountPendingByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query, args, err := qb.Select("COUNT(*)").
		From(holdsTable).
		Where(sq.Eq{"user_id": userID, "status": string(hold.StatusPending)}).
		ToSql()
	if err != nil {
		return 0, infra.WrapRepoErr("build pending count", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, infra.WrapRepoErr("count pending holds", err)
	}
	return count, nil
}

// HasPendingDuplicate reports whether the user already has a pending hold
// on the same item, or on any item sharing its ISBN. Only PENDING counts:
// a confirmed hold does not block a new request.
func (r *HoldRepository) HasPendingDuplicate(ctx context.Context, userID, itemID uuid.UUID, isbn *string) (bool, error) {
	match := sq.Or{sq.Eq{"h.item_id": itemID}}
	if isbn != nil {
		match = append(match, sq.Eq{"ci.isbn": *isbn})
	}

	inner := qb.Select("1").
		From(holdsTable + " h").
		Join("catalog_items ci ON ci.id = h.item_id").
		Where(sq.Eq{
			"h.user_id": userID,
			"h.status":  string(hold.StatusPending),
		}).
		Where(match)

	query, args, err := inner.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, infra.WrapRepoErr("build duplicate check", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, infra.WrapRepoErr("check duplicate hold", err)
	}
	return exists, nil
}

func scanHold(row pgx.Row) (*hold.Hold, error) {
	var (
		id, itemID, userID, libraryID uuid.UUID
		status                        string
		requestedAt                   time.Time
		confirmedAt, pickupDeadline   pgtype.Timestamptz
		copyLocked, reminderSent      bool
		comment                       pgtype.Text
	)
	if err := row.Scan(
		&id, &itemID, &userID, &libraryID, &status,
		&requestedAt, &confirmedAt, &pickupDeadline,
		&copyLocked, &reminderSent, &comment,
	); err != nil {
		return nil, err
	}
	return hold.ReconstructHold(
		id, itemID, userID, libraryID,
		hold.Status(status),
		requestedAt,
		pgconv.TimePtrFromPgtype(confirmedAt),
		pgconv.TimePtrFromPgtype(pickupDeadline),
		copyLocked, reminderSent,
		pgconv.StringPtrFromPgtype(comment),
	), nil
}
