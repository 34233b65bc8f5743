package components

import (
	"circulation-service/internal/infra/db"
	"circulation-service/internal/infra/readstore"
	"circulation-service/internal/infra/uow"
	"circulation-service/internal/usecase/queries"
	"circulation-service/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		fx.Annotate(
			uow.NewPostgresUoW,
			fx.As(new(shared.UnitOfWork)),
		),
		fx.Annotate(
			readstore.NewHoldReadStore,
			fx.As(new(queries.HoldReadStore)),
		),
		fx.Annotate(
			readstore.NewLoanReadStore,
			fx.As(new(queries.LoanReadStore)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}
