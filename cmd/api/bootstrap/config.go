package bootstrap

import (
	"log/slog"
	"os"

	"github.com/chachabrian/wastepickup-backend/internal/config"
	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(config.Load),
)

var LoggerModule = fx.Module("logger",
	fx.Provide(NewLogger),
)

func NewLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
