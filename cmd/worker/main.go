package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/config"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
	"mollie_bridge_echo/internal/tasks"
)

const (
	sweepBatchSize = 100
	retryDelay     = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	services.InitLogger(cfg.Env)

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	factory, err := gateway.NewFactory(cfg.GatewayOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway configuration")
	}
	methods := services.ProviderMethods(cfg.GatewayProvider, cfg.MidtransMethods)

	ledger := services.NewLedger(db)
	orders := services.NewOrderStore(db)
	settings := services.NewSettingsStore(db, cfg.GatewayProvider, methods, cfg.SeedAPIKey)
	reconciler := services.NewReconciler(db, ledger, orders, settings, factory, services.ProviderGateway(cfg.GatewayProvider))

	notifier, err := services.NewNotifier(cfg.NotifyChannel, services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.EmailFrom,
	}, services.WahaConfig{
		BaseURL:     cfg.WahaBaseURL,
		APIKey:      cfg.WahaAPIKey,
		Session:     cfg.WahaSession,
		CountryCode: cfg.DefaultCountryCode,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Customer notifications disabled")
	}

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Dependencies{
		Sweeper:     reconciler,
		Orders:      orders,
		Notifier:    notifier,
		GracePeriod: cfg.SweepGracePeriod,
		SweepLimit:  sweepBatchSize,
	})

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep, created, err := tasks.EnsureRecurring(ctx, db, models.TaskReconcileOpenPayments, cfg.SweepInterval,
		map[string]interface{}{"limit": sweepBatchSize}, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule payment sweep")
	}
	log.Info().Uint("task_id", sweep.ID).Bool("created", created).Str("rule", cfg.SweepInterval).Msg("Payment sweep scheduled")

	runner := tasks.NewRunner(db, registry, retryDelay)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", cfg.WorkerInterval).Strs("tasks", registry.Names()).Msg("Worker started")
	processScheduledTasks(ctx, runner)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, runner)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, runner *tasks.Runner) {
	count, err := runner.RunDue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching pending tasks")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("Processed pending tasks")
	}
}
