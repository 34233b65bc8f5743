package bootstrap

import (
	"circulation-service/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		func(cfg config.Config) config.CirculationConfig { return cfg.Circulation },
	),
)
