package store

import (
	"context"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// DriverDirectory resolves the vehicle snapshot a driver claims a pickup with
type DriverDirectory struct {
	db *gorm.DB
}

func NewDriverDirectory(db *gorm.DB) *DriverDirectory {
	return &DriverDirectory{db: db}
}

func (d *DriverDirectory) Snapshot(ctx context.Context, userID string) (models.DriverInfo, error) {
	var driver models.Driver
	err := d.db.WithContext(ctx).
		Preload("AssignedTruck").
		Where("user_id = ?", userID).
		First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DriverInfo{}, ErrDriverNotFound
	}
	if err != nil {
		return models.DriverInfo{}, unavailable(err, "load driver profile")
	}
	return driver.Snapshot(), nil
}
