package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/services"
)

// WebhookHandler receives payment status notifications from the gateway.
// Responses are plain text for the gateway's retry mechanism only.
type WebhookHandler struct {
	reconciler WebhookService
}

func NewWebhookHandler(reconciler WebhookService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Notify handles a notification. Only the payment id is read from it; the
// status is always fetched from the gateway.
func (h *WebhookHandler) Notify(c echo.Context) error {
	// Reachability check from the gateway dashboard
	if c.QueryParam("testByMollie") != "" {
		return c.NoContent(http.StatusOK)
	}

	paymentID := notificationID(c)
	if paymentID == "" {
		return c.String(http.StatusBadRequest, "No ID received.")
	}

	result, err := h.reconciler.Handle(c.Request().Context(), paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Str("kind", apperr.Kind(err)).
			Msg("webhook: payment status could not be reconciled")
		if errors.Is(err, services.ErrMissingPaymentID) {
			return c.String(http.StatusBadRequest, "No ID received.")
		}
		return c.String(webhookStatus(err), "Payment status could not be retrieved.")
	}

	log.Info().Str("payment_id", paymentID).Uint("order_id", result.OrderID).
		Str("remote_status", result.RemoteStatus).Str("outcome", result.Outcome).Msg("webhook processed")

	return c.String(http.StatusOK, strings.TrimSpace(result.Message+" Done."))
}

// notificationID reads the payment id from the form, the query string or,
// for gateways that post JSON, the id or order_id field.
func notificationID(c echo.Context) string {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var payload map[string]interface{}
		if err := c.Bind(&payload); err != nil {
			return ""
		}
		for _, key := range []string{"id", "order_id"} {
			if id, ok := payload[key].(string); ok && strings.TrimSpace(id) != "" {
				return strings.TrimSpace(id)
			}
		}
		return ""
	}

	if id := strings.TrimSpace(c.FormValue("id")); id != "" {
		return id
	}
	return strings.TrimSpace(c.QueryParam("id"))
}

// webhookStatus asks the gateway to redeliver on temporary failures.
func webhookStatus(err error) int {
	switch apperr.Kind(err) {
	case "gateway_unavailable", "timeout":
		return http.StatusBadGateway
	case "configuration":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
