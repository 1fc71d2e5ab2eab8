package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/database"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// openTestDB opens a private in-memory database. migrate=false leaves it
// empty so tests can create an older schema by hand.
func openTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if migrate {
		require.NoError(t, database.Migrate(db))
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := openTestDB(t, true)
	statuses := NewStatusMapper(NewSchemaInspector(db), config.DefaultStatusFallbacks, time.Second)
	require.NoError(t, statuses.Load(context.Background()))
	return NewStore(db, time.Second, NewCapabilities(), statuses)
}

func intPtr(i int) *int { return &i }

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock *int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: money.MustNew(price), Stock: stock}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedTable(t *testing.T, db *gorm.DB, number int) models.Table {
	t.Helper()
	table := models.Table{TableNumber: number, Building: "Main", Section: "Garden", Status: models.TableStatusAvailable}
	require.NoError(t, db.Create(&table).Error)
	return table
}
