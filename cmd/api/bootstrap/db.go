package bootstrap

import (
	"context"

	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/chachabrian/wastepickup-backend/internal/database"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var DBModule = fx.Module("db",
	fx.Provide(
		NewDB,
		store.NewPickupStore,
		store.NewDriverDirectory,
	),
)

func NewDB(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.DB)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}
