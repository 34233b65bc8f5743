package bootstrap

import (
	"context"
	"log/slog"

	"circulation-service/internal/infra/notifier"
	"circulation-service/internal/pkg/config"
	"circulation-service/internal/usecase"

	"go.uber.org/fx"
)

var NotifierModule = fx.Module("notifier",
	fx.Provide(
		NewNotifier,
	),
)

func NewNotifier(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) usecase.Notifier {
	if cfg.Notifier.Kind != "kafka" {
		return notifier.NewLogNotifier(logger)
	}

	kn := notifier.NewKafkaNotifier(cfg.Notifier.KafkaBrokers, cfg.Notifier.KafkaTopic, logger)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return kn.Close()
		},
	})
	return kn
}
