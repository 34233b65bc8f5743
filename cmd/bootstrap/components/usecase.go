package components

import (
	"circulation-service/internal/pkg/clock"
	"circulation-service/internal/usecase"
	"circulation-service/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	fx.Provide(
		clock.NewRealClock,
		usecase.NewCirculationCommands,
		usecase.NewCatalogCommands,
		usecase.NewExpirationSweeper,
		queries.NewHoldQueries,
		queries.NewLoanQueries,
	),
)
