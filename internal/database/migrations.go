package database

import (
	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Partnership{},
		&models.Obligation{},
		&models.NotificationQueueItem{},
		&models.NotificationLog{},
	)
}
