package database

import (
	"fmt"

	"gorm.io/gorm"

	"mall/internal/model"
	"mall/pkg/log"
)

// Models every table owned by the service, in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.InventorySku{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusLog{},
		&model.TeamCampaign{},
		&model.TeamMember{},
		&model.BargainCampaign{},
		&model.BargainSession{},
		&model.BargainHelp{},
		&model.FlashSaleSlot{},
		&model.FlashSaleListing{},
	}
}

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Debug("Starting database migration...")

	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}

	log.Debugf("Database migration completed, %d models", len(Models()))
	return nil
}
