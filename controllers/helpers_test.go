package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
)

type testApp struct {
	db     *gorm.DB
	hub    *kds.Hub
	router *gin.Engine
}

// response mirrors utils.JSONResponse with the data left raw.
type response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

func setupApp(t *testing.T, tables ...int) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	layout := make([]models.Table, 0, len(tables))
	for _, n := range tables {
		layout = append(layout, models.Table{TableNumber: n, Building: "Main", Section: "Salon"})
	}
	require.NoError(t, database.SeedTables(db, layout))

	ctx := context.Background()
	statuses := repository.NewStatusMapper(repository.NewSchemaInspector(db), config.DefaultStatusFallbacks, time.Second)
	require.NoError(t, statuses.Load(ctx))
	store := repository.NewStore(db, 2*time.Second, nil, statuses)

	hub := kds.NewHub(16)
	t.Cleanup(hub.Close)
	orders := services.NewOrderService(store, hub, services.OrderServiceConfig{
		CheckoutRetries:      1,
		TableReleaseRetries:  1,
		TableReleaseInterval: time.Hour,
	})
	pos, err := services.NewPOSService(ctx, store, orders, hub, services.POSConfig{DefaultActor: "system"})
	require.NoError(t, err)
	reports := services.NewReportService(store, time.UTC)

	cfg := &config.Config{DefaultActor: "system", CORSOrigin: "*"}
	return &testApp{
		db:     db,
		hub:    hub,
		router: router.SetupRouter(cfg, router.Deps{POS: pos, Reports: reports, Hub: hub}),
	}
}

func (a *testApp) product(t *testing.T, name, price string, stock *int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: money.MustNew(price), VatRate: decimal.Zero, Stock: stock}
	require.NoError(t, a.db.Create(&p).Error)
	return p
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, headers ...string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

type tableView struct {
	Status string `json:"status"`
	Total  json.Number `json:"total"`
	Lines  []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"lines"`
	History []struct {
		Actor  string `json:"actor"`
		Action string `json:"action"`
	} `json:"history"`
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	require.NoError(t, d.Decode(v), string(raw))
}

func intPtr(i int) *int { return &i }
