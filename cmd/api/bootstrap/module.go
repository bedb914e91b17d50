// Package bootstrap assembles the API process with fx: every long-running
// piece (hub, relay, bus, sweeper, HTTP server) is started and stopped through
// the fx lifecycle.
package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	DBModule,
	RealtimeModule,
	DispatchModule,
	HTTPModule,
)

// background runs fn for the lifetime of the app on a context that is
// cancelled when the app stops
func background(lc fx.Lifecycle, logger *slog.Logger, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := fn(ctx); err != nil && ctx.Err() == nil {
					logger.Error("background task exited", "task", name, "error", err)
				}
			}()
			return nil
		},
		OnStop: func(stop context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stop.Done():
				logger.Warn("background task did not stop in time", "task", name)
			}
			return nil
		},
	})
}
