package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/config"
	"mollie_bridge_echo/internal/services"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Operator tool for the payment bridge",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(scheduleTaskCmd())
	rootCmd.AddCommand(checkGatewayCmd())
	rootCmd.AddCommand(importSettingsCmd())
	rootCmd.AddCommand(exportSettingsCmd())
	rootCmd.AddCommand(sendTestMessageCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg := config.Load()
	services.InitLogger(cfg.Env)
	return cfg
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		return nil, fmt.Errorf("failed to connect DB: %w", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	return db, nil
}

func settingsStore(cfg *config.Config, db *gorm.DB) *services.SettingsStore {
	methods := services.ProviderMethods(cfg.GatewayProvider, cfg.MidtransMethods)
	return services.NewSettingsStore(db, cfg.GatewayProvider, methods, cfg.SeedAPIKey)
}
