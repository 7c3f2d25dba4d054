package routes

import (
	"net/http"
	"strings"

	"orderdesk-backend/config"
	"orderdesk-backend/controllers"
	"orderdesk-backend/services"
	"orderdesk-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var defaultAllowedOrigins = []string{"http://localhost:3000"}

// Dependencies is everything the router needs, built once in main.
type Dependencies struct {
	Config  config.Config
	Logger  zerolog.Logger
	DB      *gorm.DB
	Metrics *config.Metrics

	Verifier utils.TokenVerifier
	Users    utils.UserResolver

	Customers *services.CustomerService
	Orders    *services.OrderService
}

func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		l := config.RequestLogger(c, logger)
		l.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("recovered from panic")
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}))
	r.Use(config.RequestID())
	r.Use(config.PerformanceLogger(logger, cfg.SlowRequestThreshold, deps.Metrics))

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", utils.APIKeyHeader, config.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", config.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Use(utils.APIKeyMiddleware(cfg.APIKey, cfg.MediaURL))

	r.Static(strings.TrimSuffix(cfg.MediaURL, "/"), cfg.MediaRoot)

	r.GET("/healthz", healthz(deps.DB))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	requireUser := utils.AuthMiddleware(deps.Verifier, deps.Users)

	auth := r.Group("/auth")
	auth.Use(requireUser)
	{
		auth.GET("/me", controllers.Me)
	}

	api := r.Group("/api")
	api.Use(requireUser)
	{
		customerController := controllers.NewCustomerController(deps.Customers, logger)
		customers := api.Group("/customers")
		{
			customers.GET("", customerController.GetCustomers)
			customers.POST("", customerController.CreateCustomer)
			customers.GET("/:id", customerController.GetCustomer)
			customers.PUT("/:id", customerController.UpdateCustomer)
			customers.DELETE("/:id", customerController.DeleteCustomer)
		}

		orderController := controllers.NewOrderController(deps.Orders, logger)
		orders := api.Group("/orders")
		{
			orders.GET("", orderController.GetOrders)
			orders.POST("", orderController.CreateOrder)
			orders.GET("/search", orderController.SearchOrders)
			orders.GET("/:id", orderController.GetOrder)
			orders.PUT("/:id", orderController.UpdateOrder)
			orders.DELETE("/:id", orderController.DeleteOrder)
		}
	}

	return r
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
