package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/database"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/repository"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func main() {
	cfg := config.Load()
	utils.SetLogLevel(cfg.LogLevel)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	handler, shutdown, err := buildApp(context.Background(), cfg, db)
	if err != nil {
		utils.ErrorLogger.Fatalf("%v", err)
	}
	defer shutdown()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Printf("Server forced to shutdown: %v", err)
	}
}

// buildApp migrates the store, restores open orders into the live registry and
// returns the HTTP handler. shutdown stops the background workers.
func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gin.Engine, func(), error) {
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, nil, err
		}
	}
	if err := database.SeedTables(db, cfg.TableLayout); err != nil {
		return nil, nil, err
	}

	caps := repository.NewCapabilities()
	caps.Probe(db)
	statuses := repository.NewStatusMapper(repository.NewSchemaInspector(db), cfg.StatusFallbacks, cfg.DBTimeout)
	if err := statuses.Load(ctx); err != nil {
		utils.ErrorLogger.Printf("Could not read order status constraint, storing statuses as-is: %v", err)
	}
	store := repository.NewStore(db, cfg.DBTimeout, caps, statuses)

	hub := kds.NewHub(0)
	orders := services.NewOrderService(store, hub, services.OrderServiceConfig{
		CheckoutRetries:      cfg.CheckoutRetries,
		TableReleaseRetries:  cfg.TableReleaseRetries,
		TableReleaseInterval: cfg.TableReleaseInterval,
		CurrencySymbol:       cfg.CurrencySymbol,
	})

	pos, err := services.NewPOSService(ctx, store, orders, hub, services.POSConfig{
		DefaultActor:    cfg.DefaultActor,
		HistoryCapacity: cfg.HistoryCapacity,
	})
	if err != nil {
		hub.Close()
		return nil, nil, err
	}
	if err := pos.Restore(ctx); err != nil {
		hub.Close()
		return nil, nil, err
	}

	orders.Monitor().Start()
	shutdown := func() {
		orders.Monitor().Stop()
		hub.Close()
	}

	reports := services.NewReportService(store, time.Local)
	return router.SetupRouter(cfg, router.Deps{POS: pos, Reports: reports, Hub: hub}), shutdown, nil
}
