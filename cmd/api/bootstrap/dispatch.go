package bootstrap

import (
	"context"
	"log/slog"

	"github.com/chachabrian/wastepickup-backend/internal/clock"
	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/chachabrian/wastepickup-backend/internal/dispatch"
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"go.uber.org/fx"
)

var DispatchModule = fx.Module("dispatch",
	fx.Provide(
		NewStorage,
		NewCoordinator,
	),
	fx.Invoke(StartSweeper),
)

func NewStorage(cfg config.Config) (*services.Storage, error) {
	return services.NewStorage(cfg.Storage)
}

func NewCoordinator(cfg config.Config, pickups *store.PickupStore, bus *services.Bus, uploads *services.Storage, logger *slog.Logger) *dispatch.Coordinator {
	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	if uploads != nil {
		opts = append(opts, dispatch.WithUploads(uploads))
	}
	return dispatch.NewCoordinator(pickups, bus, clock.NewRealClock(), dispatch.Config{
		TTL:      cfg.Dispatch.PickupTTL,
		PageSize: cfg.Dispatch.PendingPageSize,
	}, opts...)
}

func StartSweeper(lc fx.Lifecycle, cfg config.Config, coord *dispatch.Coordinator, logger *slog.Logger) {
	background(lc, logger, "expiry-sweeper", func(ctx context.Context) error {
		coord.RunExpirySweeper(ctx, cfg.Dispatch.ExpirySweepInterval)
		return nil
	})
}
