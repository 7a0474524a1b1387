package handlers

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

// Session fields used during checkout.
const (
	sessionIssuer  = "issuer"
	sessionOrderID = "order_id"
)

// CheckoutService starts payments and reports their result to the customer.
type CheckoutService interface {
	CheckoutOptions(ctx context.Context, orderID uint) (*services.CheckoutView, error)
	Issuers(ctx context.Context, orderID uint, method string) ([]gateway.Issuer, error)
	InitiatePayment(ctx context.Context, orderID uint, method, issuer string) (*services.InitiatePaymentResult, error)
	ReturnStatus(ctx context.Context, orderID uint) (services.ReturnOutcome, *models.Order, error)
}

// WebhookService reconciles gateway notifications.
type WebhookService interface {
	Handle(ctx context.Context, paymentID string) (*services.ReconcileResult, error)
}

// SettingsService loads and saves the merchant payment settings.
type SettingsService interface {
	Load(ctx context.Context) (*models.PaymentSettings, error)
	Save(ctx context.Context, settings *models.PaymentSettings) error
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}

func parseOrderID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
