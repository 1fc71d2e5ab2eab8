package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/database"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
	"github.com/yeremiapane/restaurant-pos/repository"
)

type fixture struct {
	db     *gorm.DB
	store  *repository.Store
	orders *OrderService
	events *eventLog
}

// eventLog is a Publisher that keeps every message.
type eventLog struct {
	mu       sync.Mutex
	messages []kds.Message
}

func (e *eventLog) Publish(msg kds.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *eventLog) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.messages {
		if m.Event == event {
			n++
		}
	}
	return n
}

func openTestDB(t *testing.T) *gorm.DB {
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
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixtureWith(t *testing.T, inspector repository.EnumInspector) *fixture {
	t.Helper()
	db := openTestDB(t)
	if inspector == nil {
		inspector = repository.NewSchemaInspector(db)
	}
	statuses := repository.NewStatusMapper(inspector, config.DefaultStatusFallbacks, time.Second)
	require.NoError(t, statuses.Load(context.Background()))
	store := repository.NewStore(db, 2*time.Second, repository.NewCapabilities(), statuses)
	events := &eventLog{}
	orders := NewOrderService(store, events, OrderServiceConfig{
		CheckoutRetries:      3,
		TableReleaseRetries:  2,
		TableReleaseInterval: time.Hour,
	})
	return &fixture{db: db, store: store, orders: orders, events: events}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

func (f *fixture) table(t *testing.T, number int) models.Table {
	t.Helper()
	table := models.Table{TableNumber: number, Building: "Main", Section: "Salon", Status: models.TableStatusAvailable}
	require.NoError(t, f.db.Create(&table).Error)
	return table
}

func (f *fixture) product(t *testing.T, name, price, vat string, stock *int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: money.MustNew(price), VatRate: decimal.RequireFromString(vat), Stock: stock}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, productID).Error)
	require.NotNil(t, p.Stock)
	return *p.Stock
}

func (f *fixture) paymentCount(t *testing.T, orderID uint) int64 {
	t.Helper()
	n, err := f.store.Payments.CountByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return n
}

func (f *fixture) order(t *testing.T, id uint) *models.Order {
	t.Helper()
	o, err := f.store.Orders.Find(context.Background(), id)
	require.NoError(t, err)
	return o
}

func intPtr(i int) *int { return &i }
