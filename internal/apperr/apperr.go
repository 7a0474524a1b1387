package apperr

import (
	"context"
	"errors"
	"net/http"

	"mollie_bridge_echo/internal/gateway"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrPaymentExists       = errors.New("payment already exists")
	ErrPaymentNotResumable = errors.New("payment already exists, not resumable")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrConfig              = errors.New("payment module not configured")
	ErrLocked              = errors.New("checkout already in progress")
	ErrStatusChanged       = errors.New("order status changed concurrently")
	ErrRecordNotFound      = errors.New("payment record not found")
	ErrMethodUnavailable   = errors.New("payment method not available")
	ErrSessionMismatch     = errors.New("order not opened in this checkout session")
)

// Kind returns a short machine-readable classification of err.
func Kind(err error) string {
	var verr *gateway.ValidationError

	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrPaymentExists),
		errors.Is(err, ErrPaymentNotResumable):
		return "payment_conflict"

	case errors.Is(err, ErrOrderNotPayable):
		return "order_not_payable"

	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"

	case errors.Is(err, ErrMethodUnavailable):
		return "invalid_method"

	case errors.Is(err, ErrConfig),
		errors.Is(err, gateway.ErrMissingAPIKey):
		return "configuration"

	case errors.Is(err, ErrLocked):
		return "locked"

	case errors.Is(err, ErrSessionMismatch):
		return "session_mismatch"

	case errors.Is(err, gateway.ErrUnauthorized):
		return "gateway_unauthorized"

	case errors.As(err, &verr):
		return "gateway_validation"

	case errors.Is(err, gateway.ErrNotFound):
		return "gateway_not_found"

	case errors.Is(err, gateway.ErrTransport):
		return "gateway_unavailable"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status code used on customer-facing pages.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "order_not_found":
		return http.StatusNotFound
	case "session_mismatch":
		return http.StatusForbidden
	case "payment_conflict", "order_not_payable", "locked":
		return http.StatusConflict
	case "invalid_amount", "invalid_method", "gateway_validation":
		return http.StatusUnprocessableEntity
	case "gateway_unauthorized", "configuration":
		return http.StatusServiceUnavailable
	case "gateway_unavailable", "timeout":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to a customer for err.
func Message(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "order_not_found":
		return "We could not find this order."
	case "payment_conflict":
		return "A payment for this order already exists and can no longer be continued."
	case "order_not_payable":
		return "This order can no longer be paid."
	case "session_mismatch":
		return "Your checkout session has expired. Please open the checkout page again."
	case "locked":
		return "A payment for this order is already being started. Please wait a moment and try again."
	case "invalid_amount":
		return "This order cannot be paid online."
	case "invalid_method":
		return "The selected payment method is not available."
	case "gateway_validation":
		var verr *gateway.ValidationError
		if errors.As(err, &verr) && verr.Message != "" {
			return "The payment provider rejected the payment: " + verr.Message
		}
		return "The payment provider rejected the payment."
	case "configuration", "gateway_unauthorized":
		return "Online payment is not available at the moment."
	case "gateway_unavailable", "timeout":
		return "The payment provider could not be reached. Please try again later."
	default:
		return "Something went wrong while processing the payment."
	}
}
