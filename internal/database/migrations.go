package database

import (
	"github.com/chachabrian/wastepickup-backend/internal/models"
	"gorm.io/gorm"
)

// RunMigrations creates the dispatch tables and the pickup status check
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Truck{},
		&models.Driver{},
		&models.PickupRequest{},
	)
	if err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// customer history lookups are always newest first
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_pickup_customer_created
		ON pickup_requests (customer_id, created_at DESC)`).Error; err != nil {
		return err
	}

	db.Exec(`ALTER TABLE pickup_requests DROP CONSTRAINT IF EXISTS pickup_requests_status_check`)
	return db.Exec(`ALTER TABLE pickup_requests ADD CONSTRAINT pickup_requests_status_check
		CHECK (status IN ('PENDING','ASSIGNED','REJECTED','CANCELLED','EXPIRED','COMPLETED'))`).Error
}
