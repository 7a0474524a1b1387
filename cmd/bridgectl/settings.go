package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

func checkGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-gateway",
		Short: "Verify the configured API keys against the payment gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			settings, err := settingsStore(cfg, db).Load(cmd.Context())
			if err != nil {
				return err
			}
			factory, err := gateway.NewFactory(cfg.GatewayOptions())
			if err != nil {
				return err
			}

			failed := 0
			for _, target := range keyTargets(settings) {
				probe := *settings
				probe.APIKey = target.key
				status := services.CheckGateway(cmd.Context(), factory, &probe)
				if !status.OK {
					failed++
				}
				printStatus(cmd.OutOrStdout(), target.label, status)
			}
			if failed > 0 {
				return fmt.Errorf("%d key(s) failed the gateway check", failed)
			}
			return nil
		},
	}
}

type keyTarget struct {
	label string
	key   string
}

// keyTargets lists the base key and each override in segment order.
func keyTargets(settings *models.PaymentSettings) []keyTarget {
	targets := []keyTarget{{label: "base", key: settings.APIKey}}

	segments := make([]string, 0, len(settings.KeyOverrides))
	for segment, key := range settings.KeyOverrides {
		if key != "" {
			segments = append(segments, segment)
		}
	}
	sort.Strings(segments)
	for _, segment := range segments {
		targets = append(targets, keyTarget{label: "segment " + segment, key: settings.KeyOverrides[segment]})
	}
	return targets
}

func printStatus(w io.Writer, label string, status services.GatewayStatus) {
	state := "OK"
	if !status.OK {
		state = "FAILED"
	}
	fmt.Fprintf(w, "%-16s %-7s %s\n", label, state, status.Message)
	if len(status.Methods) > 0 {
		fmt.Fprintf(w, "%-16s methods: %v\n", "", status.Methods)
	}
}

func importSettingsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-settings",
		Short: "Replace the payment settings with a YAML document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			cfg := loadConfig()
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			store := settingsStore(cfg, db)

			current, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := decodeSettings(data, current)
			if err != nil {
				return err
			}

			if err := store.Save(cmd.Context(), settings); err != nil {
				var verr *services.SettingsValidationError
				if errors.As(err, &verr) {
					for field, msg := range verr.Fields {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
					}
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings imported.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// decodeSettings overlays a YAML document on the current settings.
// Keys missing from the document keep their current value.
func decodeSettings(data []byte, current *models.PaymentSettings) (*models.PaymentSettings, error) {
	settings := *current
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings YAML: %w", err)
	}
	settings.ID = current.ID
	return &settings, nil
}

func exportSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-settings",
		Short: "Print the payment settings as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			settings, err := settingsStore(cfg, db).Load(cmd.Context())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(settings)
		},
	}
}
