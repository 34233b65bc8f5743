package readstore

import (
	"context"
	"time"

	"circulation-service/internal/infra"
	"circulation-service/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SweepReadStore feeds the expiration sweeper with candidate hold IDs.
// The sweeper re-checks each hold under a row lock before acting, so these
// queries only need to be a superset of the truly expired set.
type SweepReadStore struct {
	db db.DBTX
}

func NewSweepReadStore(dbtx db.DBTX) *SweepReadStore {
	return &SweepReadStore{db: dbtx}
}

const expiredHoldsQuery = `
SELECT id FROM holds
WHERE (status = 'CONFIRMED' AND pickup_deadline < $1)
   OR (status = 'PENDING' AND requested_at < $2)
ORDER BY requested_at ASC`

func (s *SweepReadStore) ExpiredHoldIDs(ctx context.Context, now time.Time, requestExpiry time.Duration) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, expiredHoldsQuery, now, now.Add(-requestExpiry))
	if err != nil {
		return nil, infra.WrapRepoErr("list expired holds", err)
	}
	return scanIDs(rows)
}

const reminderHoldsQuery = `
SELECT id FROM holds
WHERE status = 'CONFIRMED'
  AND reminder_sent = false
  AND pickup_deadline >= $1
  AND pickup_deadline <= $2
ORDER BY pickup_deadline ASC`

func (s *SweepReadStore) ConfirmedHoldIDsNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, reminderHoldsQuery, now, now.Add(lead))
	if err != nil {
		return nil, infra.WrapRepoErr("list reminder holds", err)
	}
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, infra.WrapRepoErr("scan hold id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("iterate hold ids", err)
	}
	return ids, nil
}
