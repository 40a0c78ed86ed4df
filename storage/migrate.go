package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
)

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Task{},
		&models.Entry{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.LoginActivity{},
		&models.ActivityLog{},
		&models.NotificationSetting{},
	}
}

// Migrate creates missing tables, columns and indexes. It never drops anything.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate %T: %w", m, err)
		}
	}
	return nil
}
