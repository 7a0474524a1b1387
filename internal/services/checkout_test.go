package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

type checkoutFixture struct {
	db       *gorm.DB
	fake     *fakeGateway
	gateways map[string]*fakeGateway
	settings *SettingsStore
	orders   *OrderStore
	ledger   *Ledger
	locker   *memoryLocker
	svc      *PaymentService
}

func newCheckoutFixture(t *testing.T, withSettings bool) *checkoutFixture {
	t.Helper()

	db := newTestDB(t)
	fake := newFakeGateway()
	f := &checkoutFixture{
		db:       db,
		fake:     fake,
		gateways: map[string]*fakeGateway{"test_base": fake},
		settings: NewSettingsStore(db, "mollie", models.MollieMethods, ""),
		orders:   NewOrderStore(db),
		ledger:   NewLedger(db),
		locker:   newMemoryLocker(),
	}
	if withSettings {
		saveSettings(t, f.settings, nil)
	}
	f.svc = NewPaymentService(f.ledger, f.orders, f.settings, fakeFactory(f.gateways), f.locker, CheckoutConfig{
		AppURL:             "https://shop.example.com/admin",
		AdminPath:          "/admin",
		StoreCurrency:      "USD",
		SettlementCurrency: "EUR",
		Gateway:            models.PaymentGatewayMollie,
	})
	return f
}

func TestInitiatePaymentCreatesPayment(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1001, "49.99", "")

	result, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "ideal_INGBNL2A")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/tr_1", result.RedirectURL)
	assert.Equal(t, "tr_1", result.RemotePaymentID)
	assert.False(t, result.IsExisting)
	assert.True(t, result.WebhookEnabled)

	require.Len(t, f.fake.created, 1)
	req := f.fake.created[0]
	assert.Equal(t, "45.00", req.Amount.Value.StringFixed(2))
	assert.Equal(t, "EUR", req.Amount.Currency)
	assert.Equal(t, "Order 1001", req.Description)
	assert.Equal(t, "https://shop.example.com/payment/webhook", req.WebhookURL)
	assert.Equal(t, "https://shop.example.com/checkout/return?order_id=1001", req.RedirectURL)
	assert.Equal(t, "ideal", req.Method)
	assert.Equal(t, "ideal_INGBNL2A", req.Issuer)
	assert.Equal(t, "1001", req.Metadata[gateway.MetadataOrderID])
	require.NotNil(t, req.BillingAddress)
	assert.Equal(t, "Amsterdam", req.BillingAddress.City)
	assert.Nil(t, req.ShippingAddress)

	rec, err := f.ledger.Find(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tr_1", rec.RemotePaymentID)
	assert.Equal(t, "ideal", rec.Method)
	assert.Equal(t, "https://pay.example.com/tr_1", rec.CheckoutURL)
	assert.True(t, rec.WebhookEnabled)

	order, err := f.orders.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "pending", order.Status)

	histories, err := f.orders.Histories(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, "pending", histories[0].Status)
}

func TestInitiatePaymentResumesOpenPayment(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1001, "49.99", "")

	first, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
	require.NoError(t, err)

	second, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
	require.NoError(t, err)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.Equal(t, first.RemotePaymentID, second.RemotePaymentID)
	assert.True(t, second.IsExisting)

	assert.Len(t, f.fake.created, 1)
	var count int64
	require.NoError(t, f.db.Model(&models.PaymentRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	histories, err := f.orders.Histories(ctx, 1001)
	require.NoError(t, err)
	assert.Len(t, histories, 1)
}

func TestInitiatePaymentConflictWhenNotResumable(t *testing.T) {
	tests := []struct {
		name          string
		remoteStatus  string
		orderAdvanced bool
	}{
		{"payment paid", gateway.StatusPaid, true},
		{"payment expired", gateway.StatusExpired, false},
		{"order advanced while payment open", gateway.StatusOpen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newCheckoutFixture(t, true)
			createOrder(t, f.db, 1001, "49.99", "")

			first, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
			require.NoError(t, err)

			f.fake.setStatus(first.RemotePaymentID, tt.remoteStatus)
			if tt.orderAdvanced {
				require.NoError(t, f.orders.Transition(ctx, 1001, "pending", "processing", "manual", false))
			}

			_, err = f.svc.InitiatePayment(ctx, 1001, "ideal", "")
			assert.ErrorIs(t, err, apperr.ErrPaymentNotResumable)
			assert.Contains(t, err.Error(), "payment already exists for order ID 1001")
			assert.Len(t, f.fake.created, 1)
		})
	}
}

func TestInitiatePaymentRetriesWithoutWebhookURL(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1001, "49.99", "")

	f.fake.createErrs = []error{
		&gateway.ValidationError{StatusCode: 422, Field: "webhookUrl", Message: "The webhook URL is invalid"},
	}

	result, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
	require.NoError(t, err)
	assert.False(t, result.WebhookEnabled)

	require.Len(t, f.fake.created, 2)
	assert.NotEmpty(t, f.fake.created[0].WebhookURL)
	assert.Empty(t, f.fake.created[1].WebhookURL)

	rec, err := f.ledger.Find(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.WebhookEnabled)
}

func TestInitiatePaymentWebhookRetryOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1001, "49.99", "")

	webhookErr := &gateway.ValidationError{StatusCode: 422, Field: "webhookUrl", Message: "invalid"}
	f.fake.createErrs = []error{webhookErr, webhookErr}

	_, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
	require.Error(t, err)
	assert.True(t, gateway.IsFieldError(err, "webhookUrl"))
	assert.Len(t, f.fake.created, 2)

	rec, err := f.ledger.Find(ctx, 1001)
	require.NoError(t, err)
	assert.Nil(t, rec)

	order, err := f.orders.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Empty(t, order.Status)
}

func TestInitiatePaymentOtherFailuresDoNotMutate(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation on other field", &gateway.ValidationError{StatusCode: 422, Field: "amount", Message: "too low"}},
		{"transport", gateway.ErrTransport},
		{"unauthorized", gateway.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newCheckoutFixture(t, true)
			createOrder(t, f.db, 1001, "49.99", "")
			f.fake.createErrs = []error{tt.err}

			_, err := f.svc.InitiatePayment(ctx, 1001, "ideal", "")
			require.Error(t, err)
			assert.Len(t, f.fake.created, 1)

			rec, err := f.ledger.Find(ctx, 1001)
			require.NoError(t, err)
			assert.Nil(t, rec)

			histories, err := f.orders.Histories(ctx, 1001)
			require.NoError(t, err)
			assert.Empty(t, histories)
		})
	}
}

func TestInitiatePaymentUsesSegmentKey(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, false)
	saveSettings(t, f.settings, func(s *models.PaymentSettings) {
		s.KeyOverrides = map[string]string{"wholesale": "test_wholesale"}
	})
	wholesale := newFakeGateway()
	f.gateways["test_wholesale"] = wholesale

	order := createOrder(t, f.db, 2002, "10.00", "")
	require.NoError(t, f.db.Model(order).Update("customer_segment", "wholesale").Error)

	_, err := f.svc.InitiatePayment(ctx, 2002, "", "")
	require.NoError(t, err)
	assert.Len(t, wholesale.created, 1)
	assert.Empty(t, f.fake.created)
}

func TestInitiatePaymentRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("no api key", func(t *testing.T) {
		f := newCheckoutFixture(t, false)
		createOrder(t, f.db, 1, "10.00", "")
		_, err := f.svc.InitiatePayment(ctx, 1, "ideal", "")
		assert.ErrorIs(t, err, apperr.ErrConfig)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newCheckoutFixture(t, true)
		_, err := f.svc.InitiatePayment(ctx, 404, "ideal", "")
		assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	})

	t.Run("disabled method", func(t *testing.T) {
		f := newCheckoutFixture(t, true)
		createOrder(t, f.db, 1, "10.00", "")
		_, err := f.svc.InitiatePayment(ctx, 1, "giropay", "")
		assert.ErrorIs(t, err, apperr.ErrMethodUnavailable)
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newCheckoutFixture(t, true)
		createOrder(t, f.db, 1, "0.00", "")
		_, err := f.svc.InitiatePayment(ctx, 1, "ideal", "")
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
		assert.Empty(t, f.fake.created)
	})

	t.Run("checkout in progress", func(t *testing.T) {
		f := newCheckoutFixture(t, true)
		createOrder(t, f.db, 1, "10.00", "")
		release, err := f.locker.Acquire(ctx, "1", 0)
		require.NoError(t, err)
		defer release()

		_, err = f.svc.InitiatePayment(ctx, 1, "ideal", "")
		assert.ErrorIs(t, err, apperr.ErrLocked)
		assert.Empty(t, f.fake.created)
	})
}

func TestInitiatePaymentRejectsSettledOrders(t *testing.T) {
	for _, status := range []string{"processing", "canceled", "expired", "failed"} {
		t.Run(status, func(t *testing.T) {
			ctx := context.Background()
			f := newCheckoutFixture(t, true)
			createOrder(t, f.db, 2002, "49.99", status)

			_, err := f.svc.InitiatePayment(ctx, 2002, "ideal", "")
			assert.ErrorIs(t, err, apperr.ErrOrderNotPayable)
			assert.Empty(t, f.fake.created)

			order, err := f.orders.Get(ctx, 2002)
			require.NoError(t, err)
			assert.Equal(t, status, order.Status)

			rec, err := f.ledger.Find(ctx, 2002)
			require.NoError(t, err)
			assert.Nil(t, rec)

			_, err = f.svc.CheckoutOptions(ctx, 2002)
			assert.ErrorIs(t, err, apperr.ErrOrderNotPayable)
		})
	}
}

func TestInitiatePaymentAcceptsPendingOrderWithoutPayment(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 7, "10.00", "pending")

	result, err := f.svc.InitiatePayment(ctx, 7, "ideal", "")
	require.NoError(t, err)
	assert.False(t, result.IsExisting)
	assert.Len(t, f.fake.created, 1)

	histories, err := f.orders.Histories(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, histories)
}

func TestReturnStatus(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1, "10.00", "processing")
	createOrder(t, f.db, 2, "10.00", "pending")
	createOrder(t, f.db, 3, "10.00", "canceled")

	tests := []struct {
		orderID uint
		want    ReturnOutcome
	}{
		{1, ReturnSuccess},
		{2, ReturnPending},
		{3, ReturnFailed},
	}
	for _, tt := range tests {
		outcome, order, err := f.svc.ReturnStatus(ctx, tt.orderID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, outcome)
		assert.Equal(t, tt.orderID, order.ID)
	}

	outcome, _, err := f.svc.ReturnStatus(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	assert.Equal(t, ReturnFailed, outcome)
}

func TestCheckoutOptions(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	createOrder(t, f.db, 1, "49.99", "")
	f.fake.methods = []gateway.Method{
		{ID: "ideal", Description: "iDEAL", MaximumAmount: eur("50")},
		{ID: "paysafecard", Description: "paysafecard", MaximumAmount: eur("44.99")},
	}

	view, err := f.svc.CheckoutOptions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Methods, 1)
	assert.Equal(t, "ideal", view.Methods[0].ID)
	assert.Equal(t, "45.00 EUR", view.Amount.String())
	assert.Equal(t, uint(1), view.Order.ID)
}
