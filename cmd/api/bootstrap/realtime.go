package bootstrap

import (
	"context"
	"log/slog"

	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/cockroachdb/errors"
	"go.uber.org/fx"
)

var RealtimeModule = fx.Module("realtime",
	fx.Provide(
		NewHub,
		NewSink,
		NewBus,
	),
)

func NewHub(lc fx.Lifecycle, logger *slog.Logger) *services.Hub {
	hub := services.NewHub(logger)
	background(lc, logger, "hub", func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	})
	return hub
}

// NewSink picks where published events go: through Redis or RabbitMQ when a
// URL is configured so every replica's hub sees them, otherwise straight to
// the local hub.
func NewSink(lc fx.Lifecycle, cfg config.Config, hub *services.Hub, logger *slog.Logger) (services.Sink, error) {
	switch {
	case cfg.Redis.URL != "":
		client, err := services.NewRedisClient(context.Background(), cfg.Redis.URL)
		if err != nil {
			return nil, errors.Wrap(err, "redis relay")
		}
		relay := services.NewRedisRelay(client, cfg.Redis.Channel, hub, logger)
		// hooks stop in reverse order: the relay loop ends before its client closes
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
		background(lc, logger, "redis-relay", relay.Run)
		logger.Info("event relay enabled", "transport", "redis", "channel", cfg.Redis.Channel)
		return relay, nil

	case cfg.AMQP.URL != "":
		relay, err := services.NewAMQPRelay(cfg.AMQP.URL, cfg.AMQP.Exchange, hub, logger)
		if err != nil {
			return nil, errors.Wrap(err, "amqp relay")
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return relay.Close() }})
		background(lc, logger, "amqp-relay", relay.Run)
		logger.Info("event relay enabled", "transport", "amqp", "exchange", cfg.AMQP.Exchange)
		return relay, nil
	}

	logger.Info("event relay disabled, delivering to local hub only")
	return hub, nil
}

func NewBus(lc fx.Lifecycle, cfg config.Config, sink services.Sink, logger *slog.Logger) *services.Bus {
	bus := services.NewBus(sink, cfg.Dispatch.BusBuffer, logger)
	background(lc, logger, "bus", func(ctx context.Context) error {
		bus.Run(ctx)
		return nil
	})
	return bus
}
