package queries

import (
	"context"

	"circulation-service/internal/infra"

	"github.com/google/uuid"
)

type LoanReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LoanView, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*LoanView, error)
	FindActiveByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*LoanView, error)
}

type LoanQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*LoanView, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*LoanView, error)
	ListActiveByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*LoanView, error)
}

type loanQueriesImpl struct {
	store LoanReadStore
}

func NewLoanQueries(store LoanReadStore) LoanQueries {
	return &loanQueriesImpl{store: store}
}

func (q *loanQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*LoanView, error) {
	view, err := q.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return view, nil
}

func (q *loanQueriesImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*LoanView, error) {
	return q.store.FindByUserID(ctx, userID)
}

func (q *loanQueriesImpl) ListActiveByLibrary(ctx context.Context, libraryID uuid.UUID) ([]*LoanView, error) {
	return q.store.FindActiveByLibrary(ctx, libraryID)
}
