package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"mollie_bridge_echo/internal/config"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/handlers"
	appMiddleware "mollie_bridge_echo/internal/middleware"
	"mollie_bridge_echo/internal/services"
)

func main() {
	cfg := config.Load()
	services.InitLogger(cfg.Env)

	// Initialize Firebase
	authClient, err := services.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Warn().Err(err).Msg("Firebase initialization failed, admin sign-in disabled until valid credentials are provided")
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize Redis
	cache, err := services.NewRedisCache(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer cache.Close()

	// Payment services
	factory, err := gateway.NewFactory(cfg.GatewayOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway configuration")
	}
	methods := services.ProviderMethods(cfg.GatewayProvider, cfg.MidtransMethods)
	gw := services.ProviderGateway(cfg.GatewayProvider)

	ledger := services.NewLedger(db)
	orders := services.NewOrderStore(db)
	settings := services.NewSettingsStore(db, cfg.GatewayProvider, methods, cfg.SeedAPIKey)

	payments := services.NewPaymentService(ledger, orders, settings, factory, cache, services.CheckoutConfig{
		AppURL:             cfg.AppURL,
		AdminPath:          cfg.AdminPath,
		StoreCurrency:      cfg.StoreCurrency,
		SettlementCurrency: cfg.SettlementCurrency,
		Gateway:            gw,
		LockTTL:            cfg.CheckoutLockTTL,
	})
	reconciler := services.NewReconciler(db, ledger, orders, settings, factory, gw)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Warn().Err(v.Error)
			}
			event.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Static file serving
	e.Static("/static", "web/static")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authClient, handlers.FirebaseWebConfig{
		APIKey:     cfg.FirebaseAPIKey,
		AuthDomain: cfg.FirebaseAuthDomain,
		ProjectID:  cfg.FirebaseProjectID,
	}, cfg.IsProduction())
	checkoutHandler := handlers.NewCheckoutHandler(payments, cache)
	webhookHandler := handlers.NewWebhookHandler(reconciler)
	settingsHandler := handlers.NewSettingsHandler(settings, factory, methods)

	// Public routes
	e.GET("/login", authHandler.LoginPage)
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)

	// Checkout routes
	checkout := e.Group("/checkout", appMiddleware.CheckoutSession(cfg.SessionTTL, cfg.IsProduction()))
	checkout.GET("/return", checkoutHandler.Return)
	checkout.GET("/:order_id", checkoutHandler.ShowCheckout)
	checkout.POST("/:order_id/issuer", checkoutHandler.SelectIssuer)
	checkout.POST("/:order_id/pay", checkoutHandler.Pay)

	// Gateway notifications
	webhookLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.WebhookRateLimit)),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Warn().Str("ip", identifier).Msg("webhook rate limit exceeded")
			return c.String(http.StatusTooManyRequests, "Too many requests.")
		},
	})
	e.GET(services.WebhookPath, webhookHandler.Notify, webhookLimiter)
	e.POST(services.WebhookPath, webhookHandler.Notify, webhookLimiter)

	// Protected routes
	admin := e.Group(cfg.AdminPath)
	admin.Use(appMiddleware.RequireAuth(authClient))
	admin.GET("/settings", settingsHandler.GetSettings)
	admin.POST("/settings", settingsHandler.SaveSettings)

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusTemporaryRedirect, cfg.AdminPath+"/settings")
	})

	// Start server
	go func() {
		log.Info().Str("port", cfg.Port).Str("provider", string(gw)).Msg("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
