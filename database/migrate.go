package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Models lists every table the point of sale owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Table{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Expense{},
		&models.AuditLog{},
	}
}

// Migrate creates or extends the schema. Existing columns are never dropped,
// so a store migrated by an older build keeps working in reduced mode.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to AutoMigrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

// SeedTables inserts the dining tables that do not exist yet.
func SeedTables(db *gorm.DB, tables []models.Table) error {
	for i := range tables {
		t := tables[i]
		var count int64
		if err := db.Model(&models.Table{}).Where("table_number = ?", t.TableNumber).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check table %d: %w", t.TableNumber, err)
		}
		if count > 0 {
			continue
		}
		if t.Status == "" {
			t.Status = models.TableStatusAvailable
		}
		if err := db.Create(&t).Error; err != nil {
			return fmt.Errorf("failed to seed table %d: %w", t.TableNumber, err)
		}
		utils.InfoLogger.Printf("Seeded table %d (%s/%s)", t.TableNumber, t.Building, t.Section)
	}
	return nil
}
