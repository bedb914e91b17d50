package bootstrap

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/chachabrian/wastepickup-backend/internal/dispatch"
	"github.com/chachabrian/wastepickup-backend/internal/handlers"
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"github.com/chachabrian/wastepickup-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var HTTPModule = fx.Module("http",
	fx.Provide(
		NewTokenIssuer,
		NewRouter,
	),
	fx.Invoke(StartServer),
)

func NewTokenIssuer(cfg config.Config) *utils.TokenIssuer {
	return utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Duration)
}

func NewRouter(cfg config.Config, db *gorm.DB, coord *dispatch.Coordinator, drivers *store.DriverDirectory,
	hub *services.Hub, tokens *utils.TokenIssuer, logger *slog.Logger) *gin.Engine {
	return handlers.NewRouter(handlers.RouterDeps{
		DB:          db,
		Coordinator: coord,
		Drivers:     drivers,
		Hub:         hub,
		Tokens:      tokens,
		Logger:      logger,
		CORSOrigins: cfg.CORS.AllowOrigins,
	})
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, logger *slog.Logger) {
	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: engine}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("server listening", "address", srv.Addr, "mode", gin.Mode())
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server stopped unexpectedly", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})
}
