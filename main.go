package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"orderdesk-backend/config"
	"orderdesk-backend/repositories"
	"orderdesk-backend/routes"
	"orderdesk-backend/services"
	"orderdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	hashKey := flag.String("hash-api-key", "", "print a bcrypt hash of the given key for API_KEY and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := utils.HashAPIKey(*hashKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := config.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	customerRepo := repositories.NewCustomerRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	userRepo := repositories.NewUserRepository(db)
	logRepo := repositories.NewNotificationLogRepository(db)

	var sender services.SMSSender
	if cfg.SMSEnabled() {
		sender = services.NewTwilioSender(cfg, logger)
	} else {
		logger.Warn().Msg("Twilio credentials not set, SMS will only be logged")
		sender = services.LogSender{Logger: logger.With().Str("component", "sms").Logger()}
	}
	notifier := services.NewNotificationService(sender, logRepo, logger)

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up token verification")
	}

	if cfg.NotifyRetrySchedule != "" {
		retrier := services.NewNotificationRetrier(notifier, orderRepo, cfg.NotifyMaxAttempts, logger)
		if err := retrier.Start(cfg.NotifyRetrySchedule); err != nil {
			logger.Fatal().Err(err).Msg("failed to start notification retrier")
		}
		defer retrier.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(routes.Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Metrics:   config.NewMetrics(),
		Verifier:  verifier,
		Users:     services.NewUserService(userRepo, cfg.OIDCCreateUser, logger),
		Customers: services.NewCustomerService(customerRepo, logger),
		Orders:    services.NewOrderService(orderRepo, customerRepo, notifier, logger),
	})
	printRoutes(r)

	logger.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
}

// newVerifier prefers the OIDC provider and falls back to local JWTs.
func newVerifier(cfg config.Config, logger zerolog.Logger) (utils.TokenVerifier, error) {
	endpoint := cfg.OIDCUserInfoURL
	if endpoint == "" && cfg.OIDCIssuer != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		discovered, err := utils.DiscoverUserInfoEndpoint(ctx, cfg.OIDCIssuer, nil)
		if err != nil {
			return nil, err
		}
		endpoint = discovered
	}
	if endpoint != "" {
		logger.Info().Str("userinfo_endpoint", endpoint).Msg("verifying tokens with OIDC provider")
		return &utils.UserInfoVerifier{
			Endpoint:   endpoint,
			HTTPClient: &http.Client{Timeout: 10 * time.Second},
		}, nil
	}

	logger.Info().Msg("verifying tokens as locally signed JWTs")
	return &utils.JWTVerifier{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, nil
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
