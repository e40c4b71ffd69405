package database

import (
	"log"

	"github.com/sprucehq/cleanops/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Client{},
		&models.PaymentMethod{},
		&models.Booking{},
		&models.Payment{},
		&models.Settings{},
	); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial unique index: at most one active (uncaptured, live) hold
	// per booking, enforced at the store even if two placements race.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_active_hold
		ON payments (booking_id)
		WHERE is_captured = false AND status NOT IN ('canceled', 'failed')
	`)

	return db
}
