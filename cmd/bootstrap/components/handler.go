package components

import (
	"circulation-service/internal/handler"
	"circulation-service/internal/handler/api"
	"circulation-service/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewHoldHandler,
		api.NewLoanHandler,
		api.NewCatalogHandler,
		middleware.NewIdentityMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)
