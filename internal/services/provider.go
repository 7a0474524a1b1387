package services

import (
	"fmt"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

// ProviderMethods lists every method the configured provider can offer.
func ProviderMethods(provider string, configured []string) []string {
	if provider == "midtrans" {
		if len(configured) > 0 {
			return configured
		}
		return gateway.DefaultMidtransMethods
	}
	return models.MollieMethods
}

// ProviderGateway returns the gateway name stored with ledger rows.
func ProviderGateway(provider string) models.PaymentGateway {
	if provider == "midtrans" {
		return models.PaymentGatewayMidtrans
	}
	return models.PaymentGatewayMollie
}

// NewNotifier returns the customer notification channel. "none" disables
// notifications and yields a nil Notifier.
func NewNotifier(channel string, smtp SMTPConfig, waha WahaConfig) (Notifier, error) {
	switch channel {
	case "", "email":
		return NewEmailService(smtp), nil
	case "whatsapp", "waha":
		return NewWahaService(waha), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", channel)
	}
}
