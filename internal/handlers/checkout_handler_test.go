package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func TestShowCheckout(t *testing.T) {
	checkout := &fakeCheckout{
		view: &services.CheckoutView{
			Order:  &models.Order{ID: 7},
			Amount: gateway.Amount{Currency: "EUR", Value: decimal.RequireFromString("45")},
			Methods: []services.MethodOption{
				{ID: "ideal", Title: "iDEAL", SortOrder: 1},
				{ID: "creditcard", Title: "Credit card", SortOrder: 2},
			},
		},
		issuers: map[string][]gateway.Issuer{
			"ideal": {{ID: "ideal_INGBNL2A", Name: "ING", Method: "ideal"}, {ID: "ideal_RABONL2U", Name: "Rabobank", Method: "ideal"}},
		},
	}
	sessions := newMemorySessions()
	sessions.values[testSessionID+"/"+sessionIssuer] = "ideal_RABONL2U"
	h := NewCheckoutHandler(checkout, sessions)

	rec := serve(h.ShowCheckout, httptest.NewRequest(http.MethodGet, "/checkout/7", nil), "order_id", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "45.00 EUR")
	assert.Contains(t, body, `value="ideal" checked`)
	assert.Contains(t, body, `value="ideal_RABONL2U" selected`)
	assert.Contains(t, body, `action="/checkout/7/pay"`)
	assert.Contains(t, body, `data-issuer-url="/checkout/7/issuer"`)
	assert.Equal(t, "7", sessions.values[testSessionID+"/"+sessionOrderID])
}

func TestShowCheckoutMethodFromQuery(t *testing.T) {
	checkout := &fakeCheckout{
		view: &services.CheckoutView{
			Amount:  gateway.Amount{Currency: "EUR", Value: decimal.RequireFromString("10")},
			Methods: []services.MethodOption{{ID: "ideal", Title: "iDEAL"}, {ID: "creditcard", Title: "Credit card"}},
		},
		issuers: map[string][]gateway.Issuer{"ideal": {{ID: "ideal_INGBNL2A", Name: "ING"}}},
	}
	h := NewCheckoutHandler(checkout, newMemorySessions())

	rec := serve(h.ShowCheckout, httptest.NewRequest(http.MethodGet, "/checkout/7?method=creditcard", nil), "order_id", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="creditcard" checked`)
	assert.NotContains(t, rec.Body.String(), "ideal_INGBNL2A")
}

func TestShowCheckoutUnknownOrder(t *testing.T) {
	checkout := &fakeCheckout{viewErr: fmt.Errorf("get order 9: %w", apperr.ErrOrderNotFound)}
	h := NewCheckoutHandler(checkout, newMemorySessions())

	rec := serve(h.ShowCheckout, httptest.NewRequest(http.MethodGet, "/checkout/9", nil), "order_id", "9")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "We could not find this order.")
	assert.NotContains(t, rec.Body.String(), "Try again")
}

func TestSelectIssuer(t *testing.T) {
	sessions := sessionWithOrder("7")
	h := NewCheckoutHandler(&fakeCheckout{}, sessions)

	req := formRequest(http.MethodPost, "/checkout/7/issuer", url.Values{"issuer_id": {"ideal_INGBNL2A"}})
	rec := serve(h.SelectIssuer, req, "order_id", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"issuer_id":"ideal_INGBNL2A"}`, rec.Body.String())
	assert.Equal(t, "ideal_INGBNL2A", sessions.values[testSessionID+"/"+sessionIssuer])
}

func TestPayIssuerPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		formIssuer string
		stored     string
		want       string
	}{
		{name: "form wins", formIssuer: "ideal_INGBNL2A", stored: "ideal_RABONL2U", want: "ideal_INGBNL2A"},
		{name: "session fallback", formIssuer: "", stored: "ideal_RABONL2U", want: "ideal_RABONL2U"},
		{name: "none", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkout := &fakeCheckout{result: &services.InitiatePaymentResult{
				RedirectURL:     "https://pay.example.com/tr_1",
				RemotePaymentID: "tr_1",
			}}
			sessions := sessionWithOrder("7")
			sessions.values[testSessionID+"/"+sessionIssuer] = tt.stored
			h := NewCheckoutHandler(checkout, sessions)

			form := url.Values{"method": {"ideal"}, "issuer": {tt.formIssuer}}
			rec := serve(h.Pay, formRequest(http.MethodPost, "/checkout/7/pay", form), "order_id", "7")

			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "https://pay.example.com/tr_1", rec.Header().Get(echo.HeaderLocation))
			require.Len(t, checkout.calls, 1)
			assert.Equal(t, initiateCall{orderID: 7, method: "ideal", issuer: tt.want}, checkout.calls[0])
			assert.Empty(t, sessions.values[testSessionID+"/"+sessionIssuer])
		})
	}
}

func TestPayRequiresOrderFromSession(t *testing.T) {
	tests := []struct {
		name     string
		sessions *memorySessions
	}{
		{"no checkout opened", newMemorySessions()},
		{"other order opened", sessionWithOrder("8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkout := &fakeCheckout{result: &services.InitiatePaymentResult{RedirectURL: "https://pay.example.com/tr_1"}}
			h := NewCheckoutHandler(checkout, tt.sessions)

			form := url.Values{"method": {"ideal"}}
			rec := serve(h.Pay, formRequest(http.MethodPost, "/checkout/7/pay", form), "order_id", "7")

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), "Please open the checkout page again.")
			assert.Contains(t, rec.Body.String(), `href="/checkout/7"`)
			assert.Empty(t, checkout.calls)
		})
	}
}

func TestSelectIssuerRequiresOrderFromSession(t *testing.T) {
	sessions := sessionWithOrder("8")
	h := NewCheckoutHandler(&fakeCheckout{}, sessions)

	req := formRequest(http.MethodPost, "/checkout/7/issuer", url.Values{"issuer_id": {"ideal_INGBNL2A"}})
	rec := serve(h.SelectIssuer, req, "order_id", "7")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sessions.values[testSessionID+"/"+sessionIssuer])
}

func TestPayFailureRendersReturnPage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "not resumable",
			err:     fmt.Errorf("%w: a payment already exists for order ID 7", apperr.ErrPaymentNotResumable),
			status:  http.StatusConflict,
			message: "A payment for this order already exists and can no longer be continued.",
		},
		{
			name:    "order settled",
			err:     fmt.Errorf("%w: order 7 is processing", apperr.ErrOrderNotPayable),
			status:  http.StatusConflict,
			message: "This order can no longer be paid.",
		},
		{
			name:    "gateway down",
			err:     fmt.Errorf("create payment for order 7: %w", gateway.ErrTransport),
			status:  http.StatusBadGateway,
			message: "The payment provider could not be reached. Please try again later.",
		},
		{
			name:    "rejected",
			err:     &gateway.ValidationError{StatusCode: 422, Field: "amount", Message: "Amount is lower than minimum"},
			status:  http.StatusUnprocessableEntity,
			message: "The payment provider rejected the payment: Amount is lower than minimum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckoutHandler(&fakeCheckout{initiateErr: tt.err}, sessionWithOrder("7"))

			rec := serve(h.Pay, formRequest(http.MethodPost, "/checkout/7/pay", url.Values{"method": {"ideal"}}), "order_id", "7")

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Contains(t, rec.Body.String(), `href="/checkout/7"`)
		})
	}
}

func TestPayWithoutMethod(t *testing.T) {
	checkout := &fakeCheckout{}
	h := NewCheckoutHandler(checkout, sessionWithOrder("7"))

	rec := serve(h.Pay, formRequest(http.MethodPost, "/checkout/7/pay", url.Values{}), "order_id", "7")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "The selected payment method is not available.")
	assert.Empty(t, checkout.calls)
}

func TestReturnOutcomes(t *testing.T) {
	tests := []struct {
		outcome services.ReturnOutcome
		heading string
		retry   bool
	}{
		{services.ReturnSuccess, "Thank you for your payment", false},
		{services.ReturnPending, "Payment not completed yet", true},
		{services.ReturnFailed, "Payment failed", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			h := NewCheckoutHandler(&fakeCheckout{outcome: tt.outcome}, newMemorySessions())

			rec := serve(h.Return, httptest.NewRequest(http.MethodGet, "/checkout/return?order_id=7", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.heading)
			assert.Contains(t, rec.Body.String(), "payment-result--"+string(tt.outcome))
			if tt.retry {
				assert.Contains(t, rec.Body.String(), `href="/checkout/7"`)
			} else {
				assert.NotContains(t, rec.Body.String(), "Try again")
			}
		})
	}
}

func TestReturnUnknownOrder(t *testing.T) {
	h := NewCheckoutHandler(&fakeCheckout{returnErr: apperr.ErrOrderNotFound}, newMemorySessions())

	rec := serve(h.Return, httptest.NewRequest(http.MethodGet, "/checkout/return?order_id=404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "We could not find this order.")
}

func TestInvalidOrderID(t *testing.T) {
	h := NewCheckoutHandler(&fakeCheckout{}, newMemorySessions())

	rec := serve(h.ShowCheckout, httptest.NewRequest(http.MethodGet, "/checkout/abc", nil), "order_id", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.Return, httptest.NewRequest(http.MethodGet, "/checkout/return", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
