package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mollie_bridge_echo/internal/services"
)

func sendTestMessageCmd() *cobra.Command {
	var phone, msg string

	cmd := &cobra.Command{
		Use:   "send-test-message",
		Short: "Send a WhatsApp message through WAHA",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			service := services.NewWahaService(services.WahaConfig{
				BaseURL:     cfg.WahaBaseURL,
				APIKey:      cfg.WahaAPIKey,
				Session:     cfg.WahaSession,
				CountryCode: cfg.DefaultCountryCode,
			})

			chatID := services.NormalizeChatID(phone, cfg.DefaultCountryCode)
			fmt.Fprintf(cmd.OutOrStdout(), "Sending message to %s: %s\n", chatID, msg)
			if err := service.SendMessage(cmd.Context(), chatID, msg); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent successfully!")
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number (e.g. 31612345678)")
	cmd.Flags().StringVar(&msg, "msg", "Test message from the payment bridge", "Message body")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}
