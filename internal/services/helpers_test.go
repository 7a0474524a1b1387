package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func createOrder(t *testing.T, db *gorm.DB, id uint, total, status string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             id,
		Total:          decimal.RequireFromString(total),
		Currency:       "USD",
		Status:         status,
		CustomerName:   "Jan Jansen",
		CustomerEmail:  "jan@example.com",
		CustomerPhone:  "0612345678",
		PaymentAddress: "Keizersgracht 313",
		PaymentCity:    "Amsterdam",
		PaymentCountry: "NL",
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func saveSettings(t *testing.T, store *SettingsStore, mutate func(s *models.PaymentSettings)) *models.PaymentSettings {
	t.Helper()
	settings := models.DefaultPaymentSettings(models.MollieMethods)
	settings.APIKey = "test_base"
	settings.CurrencyRates = map[string]string{"EUR": "0.9002"}
	if mutate != nil {
		mutate(settings)
	}
	require.NoError(t, store.Save(context.Background(), settings))
	return settings
}

// fakeGateway is an in-memory gateway bound to one key.
type fakeGateway struct {
	mu sync.Mutex

	payments  map[string]*gateway.Payment
	methods   []gateway.Method
	issuers   []gateway.Issuer
	methodErr map[string]error

	// createErrs are returned by successive CreatePayment calls before succeeding.
	createErrs []error
	created    []gateway.PaymentRequest
	getErr     error
	gets       int
	seq        int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:  make(map[string]*gateway.Payment),
		methodErr: make(map[string]error),
	}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, req)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	f.seq++
	p := &gateway.Payment{
		ID:          fmt.Sprintf("tr_%d", f.seq),
		Status:      gateway.StatusOpen,
		Method:      req.Method,
		Amount:      req.Amount,
		CheckoutURL: fmt.Sprintf("https://pay.example.com/tr_%d", f.seq),
		Metadata:    req.Metadata,
	}
	f.payments[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeGateway) GetPayment(ctx context.Context, id string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeGateway) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id].Status = status
}

func (f *fakeGateway) ListMethods(ctx context.Context) ([]gateway.Method, error) {
	return f.methods, nil
}

func (f *fakeGateway) GetMethod(ctx context.Context, id string) (*gateway.Method, error) {
	if err := f.methodErr[id]; err != nil {
		return nil, err
	}
	for _, m := range f.methods {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", gateway.ErrNotFound, id)
}

func (f *fakeGateway) ListIssuers(ctx context.Context) ([]gateway.Issuer, error) {
	return f.issuers, nil
}

// unauthorizedGateway rejects every call.
type unauthorizedGateway struct{}

func (unauthorizedGateway) Name() string { return "fake" }
func (unauthorizedGateway) CreatePayment(context.Context, gateway.PaymentRequest) (*gateway.Payment, error) {
	return nil, gateway.ErrUnauthorized
}
func (unauthorizedGateway) GetPayment(context.Context, string) (*gateway.Payment, error) {
	return nil, gateway.ErrUnauthorized
}
func (unauthorizedGateway) ListMethods(context.Context) ([]gateway.Method, error) {
	return nil, gateway.ErrUnauthorized
}
func (unauthorizedGateway) GetMethod(context.Context, string) (*gateway.Method, error) {
	return nil, gateway.ErrUnauthorized
}
func (unauthorizedGateway) ListIssuers(context.Context) ([]gateway.Issuer, error) {
	return nil, gateway.ErrUnauthorized
}

func fakeFactory(byKey map[string]*fakeGateway) gateway.Factory {
	return func(apiKey string) gateway.Client {
		if g, ok := byKey[apiKey]; ok {
			return g
		}
		return unauthorizedGateway{}
	}
}

// memoryLocker is an in-process Locker.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, apperr.ErrLocked
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
