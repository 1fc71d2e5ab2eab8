package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/controllers"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	POS     *services.POSService
	Reports *services.ReportService
	Hub     *kds.Hub
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))
	r.Use(middlewares.ActorMiddleware(cfg.DefaultActor))
	r.Use(middlewares.LoggerMiddleware())

	tableCtrl := controllers.NewTableController(deps.POS)
	reportCtrl := controllers.NewReportController(deps.Reports)
	kdsCtrl := controllers.NewKDSController(deps.Hub, cfg.CORSOrigin)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", kdsCtrl.Stream)

	api := r.Group("/")
	api.Use(middlewares.NewRateLimiter(cfg.RateLimitRPS).RateLimit())
	{
		tables := api.Group("/tables")
		tables.GET("", tableCtrl.ListTables)
		tables.GET("/:number", tableCtrl.GetTable)
		tables.POST("/:number/items", tableCtrl.AddItem)
		tables.POST("/:number/items/decrease", tableCtrl.DecreaseItem)
		tables.DELETE("/:number/items/:product", tableCtrl.RemoveItem)
		tables.POST("/:number/serve", tableCtrl.Serve)
		tables.POST("/:number/clear", tableCtrl.Clear)
		tables.POST("/:number/sale", tableCtrl.Sale)

		reports := api.Group("/reports")
		reports.GET("/daily", reportCtrl.Daily)
		reports.GET("/monthly", reportCtrl.Monthly)
		reports.GET("/net-profit", reportCtrl.NetProfit)
		reports.GET("/summary", reportCtrl.Summary)

		api.POST("/expenses", reportCtrl.CreateExpense)
	}

	return r
}
