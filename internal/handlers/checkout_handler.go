package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/middleware"
	"mollie_bridge_echo/internal/services"
	"mollie_bridge_echo/web/templates/pages"
)

// CheckoutHandler serves the customer side of a payment: method selection,
// issuer selection, the redirect to the gateway and the return page.
type CheckoutHandler struct {
	checkout CheckoutService
	sessions services.SessionStore
}

func NewCheckoutHandler(checkout CheckoutService, sessions services.SessionStore) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, sessions: sessions}
}

// ShowCheckout renders the payment form for an order
func (h *CheckoutHandler) ShowCheckout(c echo.Context) error {
	orderID, ok := parseOrderID(c.Param("order_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}
	ctx := c.Request().Context()

	view, err := h.checkout.CheckoutOptions(ctx, orderID)
	if err != nil {
		return h.renderFailure(c, orderID, err)
	}

	method := c.QueryParam("method")
	if method == "" {
		method = firstSelectable(view.Methods)
	}

	var issuers []gateway.Issuer
	if method != "" {
		issuers, err = h.checkout.Issuers(ctx, orderID, method)
		if err != nil {
			// Issuers are optional; the gateway asks for the bank itself.
			log.Warn().Err(err).Uint("order_id", orderID).Str("method", method).Msg("failed to list issuers")
			issuers = nil
		}
	}

	sessionID := middleware.SessionID(c)
	selectedIssuer, err := h.sessions.GetValue(ctx, sessionID, sessionIssuer)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read checkout session")
	}
	if err := h.sessions.SetValue(ctx, sessionID, sessionOrderID, strconv.FormatUint(uint64(orderID), 10)); err != nil {
		log.Warn().Err(err).Msg("failed to write checkout session")
	}

	props := pages.CheckoutFormProps{
		Title:          fmt.Sprintf("Pay order #%d", orderID),
		OrderID:        orderID,
		Amount:         view.Amount.String(),
		Methods:        view.Methods,
		SelectedMethod: method,
		Issuers:        issuers,
		SelectedIssuer: selectedIssuer,
		IssuerURL:      checkoutPath(orderID) + "/issuer",
		PayURL:         checkoutPath(orderID) + "/pay",
	}

	return pages.CheckoutForm(props).Render(ctx, c.Response())
}

// SelectIssuer stores the issuer chosen in the checkout form in the session.
// An empty value clears the selection.
func (h *CheckoutHandler) SelectIssuer(c echo.Context) error {
	orderID, ok := parseOrderID(c.Param("order_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}
	if err := h.checkSessionOrder(c, orderID); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err))
	}

	issuerID := c.FormValue("issuer_id")
	if err := h.sessions.SetValue(c.Request().Context(), middleware.SessionID(c), sessionIssuer, issuerID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store issuer")
	}

	return c.JSON(http.StatusOK, map[string]string{"issuer_id": issuerID})
}

// Pay creates or resumes the gateway payment and redirects the customer to it.
// An issuer in the form takes precedence over the one stored in the session.
func (h *CheckoutHandler) Pay(c echo.Context) error {
	orderID, ok := parseOrderID(c.Param("order_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}
	ctx := c.Request().Context()
	sessionID := middleware.SessionID(c)

	if err := h.checkSessionOrder(c, orderID); err != nil {
		log.Warn().Err(err).Uint("order_id", orderID).Msg("payment refused")
		return h.renderFailure(c, orderID, err)
	}

	method := c.FormValue("method")
	if method == "" {
		return h.renderFailure(c, orderID, fmt.Errorf("%w: no method selected", apperr.ErrMethodUnavailable))
	}

	issuer := c.FormValue("issuer")
	if issuer == "" {
		stored, err := h.sessions.GetValue(ctx, sessionID, sessionIssuer)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read checkout session")
		}
		issuer = stored
	}

	result, err := h.checkout.InitiatePayment(ctx, orderID, method, issuer)
	if err != nil {
		log.Warn().Err(err).Uint("order_id", orderID).Str("method", method).Str("kind", apperr.Kind(err)).
			Msg("failed to start payment")
		return h.renderFailure(c, orderID, err)
	}

	if err := h.sessions.SetValue(ctx, sessionID, sessionIssuer, ""); err != nil {
		log.Warn().Err(err).Msg("failed to clear issuer from checkout session")
	}

	return c.Redirect(http.StatusSeeOther, result.RedirectURL)
}

// Return shows the result of a payment after the gateway sends the customer
// back. The order is only read here; the webhook applies the status.
func (h *CheckoutHandler) Return(c echo.Context) error {
	orderID, ok := parseOrderID(c.QueryParam("order_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order ID")
	}

	outcome, _, err := h.checkout.ReturnStatus(c.Request().Context(), orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrOrderNotFound) {
			return h.renderFailure(c, orderID, err)
		}
		return err
	}

	props := pages.ReturnPageProps{
		Title:   "Payment",
		Outcome: string(outcome),
		OrderID: orderID,
	}
	switch outcome {
	case services.ReturnSuccess:
		props.Heading = "Thank you for your payment"
		props.Message = "Your payment was received and your order is being processed."
	case services.ReturnPending:
		props.Heading = "Payment not completed yet"
		props.Message = "We have not received your payment yet. If you already paid, this page will update shortly. Otherwise you can try again."
		props.RetryURL = checkoutPath(orderID)
	default:
		props.Heading = "Payment failed"
		props.Message = "Unfortunately the payment was not completed."
		props.RetryURL = checkoutPath(orderID)
	}

	return pages.ReturnPage(props).Render(c.Request().Context(), c.Response())
}

// renderFailure shows the branded return page with a retry link.
func (h *CheckoutHandler) renderFailure(c echo.Context, orderID uint, err error) error {
	props := pages.ReturnPageProps{
		Title:   "Payment failed",
		Outcome: string(services.ReturnFailed),
		OrderID: orderID,
		Heading: "The payment could not be started",
		Message: apperr.Message(err),
	}
	if !errors.Is(err, apperr.ErrOrderNotFound) {
		props.RetryURL = checkoutPath(orderID)
	} else {
		props.OrderID = 0
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(apperr.HTTPStatus(err))
	return pages.ReturnPage(props).Render(c.Request().Context(), c.Response())
}

// checkSessionOrder allows payment actions only for the order whose checkout
// form was opened in this session.
func (h *CheckoutHandler) checkSessionOrder(c echo.Context, orderID uint) error {
	stored, err := h.sessions.GetValue(c.Request().Context(), middleware.SessionID(c), sessionOrderID)
	if err != nil {
		return fmt.Errorf("read checkout session: %w", err)
	}
	if stored != strconv.FormatUint(uint64(orderID), 10) {
		return fmt.Errorf("%w: order %d", apperr.ErrSessionMismatch, orderID)
	}
	return nil
}

func firstSelectable(methods []services.MethodOption) string {
	for _, m := range methods {
		if m.Error == "" {
			return m.ID
		}
	}
	return ""
}

func checkoutPath(orderID uint) string {
	return "/checkout/" + strconv.FormatUint(uint64(orderID), 10)
}
