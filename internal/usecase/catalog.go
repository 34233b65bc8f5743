package usecase

import (
	"context"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/infra"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
)

var ErrAlreadyExists = errs.New("item already exists")

// CatalogCommands covers the staff-side inventory management the
// circulation desk needs: registering an item with its copy count.
type CatalogCommands interface {
	AddItem(ctx context.Context, staffID uuid.UUID, title, author string, isbn *string, totalCopies int) (*catalog.Item, error)
}

type catalogImpl struct {
	uow shared.UnitOfWork
}

func NewCatalogCommands(uow shared.UnitOfWork) CatalogCommands {
	return &catalogImpl{uow: uow}
}

func (c *catalogImpl) AddItem(ctx context.Context, staffID uuid.UUID, title, author string, isbn *string, totalCopies int) (*catalog.Item, error) {
	staff, err := c.uow.Reads().UserByID(ctx, staffID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if !staff.IsStaff() || staff.LibraryID == nil {
		return nil, ErrForbidden
	}

	item, err := catalog.NewItem(*staff.LibraryID, title, author, isbn, totalCopies)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}

	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if err := tx.Items().Create(ctx, item); err != nil {
			if infra.IsKind(err, infra.KindDuplicateKey) {
				return ErrAlreadyExists
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
