package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/chachabrian/wastepickup-backend/cmd/api/bootstrap"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
}

func main() {
	app := fx.New(
		bootstrap.Module,
		fx.NopLogger,
	)

	if err := app.Start(context.Background()); err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	<-app.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		slog.Error("failed to stop cleanly", "error", err)
	}
	slog.Info("stopped")
}
