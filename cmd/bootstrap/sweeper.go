package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"circulation-service/internal/pkg/config"
	"circulation-service/internal/usecase"

	"go.uber.org/fx"
)

var SweeperModule = fx.Module("sweeper",
	fx.Invoke(
		runSweeper,
	),
)

// runSweeper drives the expiration sweep on a fixed interval for the
// lifetime of the application.
func runSweeper(lc fx.Lifecycle, sweeper *usecase.ExpirationSweeper, cfg config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Circulation.SweepInterval)
				defer ticker.Stop()

				logger.Info("expiration sweeper started", "interval", cfg.Circulation.SweepInterval)
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						processed, err := sweeper.RunExpirationSweep(ctx)
						if err != nil {
							logger.Error("expiration sweep failed", "error", err)
							continue
						}
						if processed > 0 {
							logger.Info("expiration sweep finished", "expired", processed)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
