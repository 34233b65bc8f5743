package queries

import (
	"context"

	"circulation-service/internal/infra"
	"circulation-service/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrHoldNotFound = errs.New("hold not found")
	ErrLoanNotFound = errs.New("loan not found")
)

type HoldReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*HoldView, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*HoldView, error)
	FindPendingByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*HoldView, error)
}

type HoldQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*HoldView, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*HoldView, error)
	ListPendingByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*HoldView, error)
}

type holdQueriesImpl struct {
	store HoldReadStore
}

func NewHoldQueries(store HoldReadStore) HoldQueries {
	return &holdQueriesImpl{store: store}
}

func (q *holdQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*HoldView, error) {
	view, err := q.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	return view, nil
}

func (q *holdQueriesImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*HoldView, error) {
	return q.store.FindByUserID(ctx, userID)
}

func (q *holdQueriesImpl) ListPendingByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*HoldView, error) {
	return q.store.FindPendingByLibrary(ctx, libraryID)
}
