package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// MigrateDB 迁移历史记录表结构。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("setup: cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.TransitionRecord{}); err != nil {
		return fmt.Errorf("setup: failed to migrate transition_records table: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
