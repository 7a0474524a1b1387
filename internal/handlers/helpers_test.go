package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/middleware"
	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

const testSessionID = "4f9f1f3e-4a53-4a8e-9d59-9c5a1f0f6a11"

// serve runs h behind the checkout session middleware and the echo error handler.
func serve(h echo.HandlerFunc, req *http.Request, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	req.AddCookie(&http.Cookie{Name: "checkout_session", Value: testSessionID})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if err := middleware.CheckoutSession(time.Hour, false)(h)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

type memorySessions struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{values: make(map[string]string)}
}

// sessionWithOrder returns sessions in which the checkout form of orderID was opened.
func sessionWithOrder(orderID string) *memorySessions {
	m := newMemorySessions()
	m.values[testSessionID+"/"+sessionOrderID] = orderID
	return m
}

func (m *memorySessions) GetValue(ctx context.Context, sessionID, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[sessionID+"/"+field], nil
}

func (m *memorySessions) SetValue(ctx context.Context, sessionID, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sessionID+"/"+field] = value
	return nil
}

type initiateCall struct {
	orderID uint
	method  string
	issuer  string
}

type fakeCheckout struct {
	view        *services.CheckoutView
	viewErr     error
	issuers     map[string][]gateway.Issuer
	result      *services.InitiatePaymentResult
	initiateErr error
	calls       []initiateCall
	outcome     services.ReturnOutcome
	returnErr   error
}

func (f *fakeCheckout) CheckoutOptions(ctx context.Context, orderID uint) (*services.CheckoutView, error) {
	return f.view, f.viewErr
}

func (f *fakeCheckout) Issuers(ctx context.Context, orderID uint, method string) ([]gateway.Issuer, error) {
	return f.issuers[method], nil
}

func (f *fakeCheckout) InitiatePayment(ctx context.Context, orderID uint, method, issuer string) (*services.InitiatePaymentResult, error) {
	f.calls = append(f.calls, initiateCall{orderID: orderID, method: method, issuer: issuer})
	return f.result, f.initiateErr
}

func (f *fakeCheckout) ReturnStatus(ctx context.Context, orderID uint) (services.ReturnOutcome, *models.Order, error) {
	if f.returnErr != nil {
		return services.ReturnFailed, nil, f.returnErr
	}
	return f.outcome, &models.Order{ID: orderID}, nil
}

type fakeReconciler struct {
	result *services.ReconcileResult
	err    error
	ids    []string
}

func (f *fakeReconciler) Handle(ctx context.Context, paymentID string) (*services.ReconcileResult, error) {
	f.ids = append(f.ids, paymentID)
	return f.result, f.err
}

type fakeSettings struct {
	current *models.PaymentSettings
	saved   []*models.PaymentSettings
}

func (f *fakeSettings) Load(ctx context.Context) (*models.PaymentSettings, error) {
	return f.current, nil
}

func (f *fakeSettings) Save(ctx context.Context, settings *models.PaymentSettings) error {
	if err := services.ValidateSettings(settings, "mollie"); err != nil {
		return err
	}
	f.saved = append(f.saved, settings)
	f.current = settings
	return nil
}

// methodsGateway answers ListMethods only.
type methodsGateway struct {
	methods []gateway.Method
	err     error
}

func (g methodsGateway) Name() string { return "stub" }
func (g methodsGateway) CreatePayment(context.Context, gateway.PaymentRequest) (*gateway.Payment, error) {
	return nil, gateway.ErrTransport
}
func (g methodsGateway) GetPayment(context.Context, string) (*gateway.Payment, error) {
	return nil, gateway.ErrTransport
}
func (g methodsGateway) ListMethods(context.Context) ([]gateway.Method, error) {
	return g.methods, g.err
}
func (g methodsGateway) GetMethod(context.Context, string) (*gateway.Method, error) {
	return nil, gateway.ErrTransport
}
func (g methodsGateway) ListIssuers(context.Context) ([]gateway.Issuer, error) {
	return nil, nil
}
