package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

// Field name the gateway reports when it rejects the webhook URL.
// Routes the gateway sends the customer and notifications back to.
const (
	ReturnPath  = "/checkout/return"
	WebhookPath = "/payment/webhook"
)

// CheckoutConfig holds the process-level checkout settings.
type CheckoutConfig struct {
	AppURL             string
	AdminPath          string
	StoreCurrency      string
	SettlementCurrency string
	Gateway            models.PaymentGateway
	LockTTL            time.Duration
}

// PaymentService creates and resumes gateway payments for orders.
type PaymentService struct {
	ledger   *Ledger
	orders   *OrderStore
	settings *SettingsStore
	factory  gateway.Factory
	locker   Locker
	cfg      CheckoutConfig
}

func NewPaymentService(ledger *Ledger, orders *OrderStore, settings *SettingsStore, factory gateway.Factory, locker Locker, cfg CheckoutConfig) *PaymentService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &PaymentService{
		ledger:   ledger,
		orders:   orders,
		settings: settings,
		factory:  factory,
		locker:   locker,
		cfg:      cfg,
	}
}

// InitiatePaymentResult holds the result of an initiation attempt
type InitiatePaymentResult struct {
	RedirectURL     string
	RemotePaymentID string
	IsExisting      bool
	// WebhookEnabled is false when the gateway rejected the webhook URL and
	// the payment was created without one.
	WebhookEnabled bool
}

// InitiatePayment starts a payment for an order or resumes the one in flight.
//
// An existing payment is resumed only while the gateway still reports it open
// and the order is still awaiting payment; otherwise
// apperr.ErrPaymentNotResumable is returned. An order without a payment must
// be new or awaiting payment, else apperr.ErrOrderNotPayable is returned.
// Concurrent calls for the same order are serialised with a lock.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID uint, method, issuer string) (*InitiatePaymentResult, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key", apperr.ErrConfig)
	}
	if method != "" && !settings.MethodEnabled(method) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrMethodUnavailable, method)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, strconv.FormatUint(uint64(order.ID), 10), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	client, err := gateway.NewClientSet(s.factory, CredentialsOf(settings)).For(order.CustomerSegment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}

	// 1. Check for a payment already in flight
	existing, err := s.ledger.Find(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.resume(ctx, client, order, existing, settings)
	}
	if err := payable(order, settings); err != nil {
		return nil, err
	}

	// 2. Create new payment
	amount, err := s.settlementAmount(order, settings)
	if err != nil {
		return nil, err
	}

	req := s.buildRequest(order, settings, amount, method, issuer)

	webhookEnabled := true
	payment, err := client.CreatePayment(ctx, req)
	if gateway.IsFieldError(err, gateway.FieldWebhookURL) {
		log.Warn().Err(err).Uint("order_id", order.ID).Str("webhook_url", req.WebhookURL).
			Msg("gateway rejected webhook URL, retrying without notifications")
		req.WebhookURL = ""
		webhookEnabled = false
		payment, err = client.CreatePayment(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("create payment for order %d: %w", order.ID, err)
	}

	// 3. Record payment and mark order as awaiting payment
	rec := &models.PaymentRecord{
		OrderID:         order.ID,
		PaymentGateway:  s.cfg.Gateway,
		Method:          method,
		RemotePaymentID: payment.ID,
		RemoteStatus:    payment.Status,
		CheckoutURL:     payment.CheckoutURL,
		WebhookEnabled:  webhookEnabled,
	}
	if err := s.ledger.Create(ctx, rec); err != nil {
		return nil, err
	}

	if order.Status != settings.Statuses.Pending {
		if err := s.orders.Transition(ctx, order.ID, order.Status, settings.Statuses.Pending, "Redirected to the payment gateway.", false); err != nil {
			return nil, err
		}
	}

	log.Info().Uint("order_id", order.ID).Str("payment_id", payment.ID).Str("amount", req.Amount.String()).
		Bool("webhook_enabled", webhookEnabled).Msg("payment created")

	return &InitiatePaymentResult{
		RedirectURL:     payment.CheckoutURL,
		RemotePaymentID: payment.ID,
		IsExisting:      false,
		WebhookEnabled:  webhookEnabled,
	}, nil
}

func (s *PaymentService) resume(ctx context.Context, client gateway.Client, order *models.Order, rec *models.PaymentRecord, settings *models.PaymentSettings) (*InitiatePaymentResult, error) {
	if order.Status != settings.Statuses.Pending {
		return nil, fmt.Errorf("%w: a payment already exists for order ID %d", apperr.ErrPaymentNotResumable, order.ID)
	}

	payment, err := client.GetPayment(ctx, rec.RemotePaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", rec.RemotePaymentID, err)
	}
	if !payment.IsOpen() {
		return nil, fmt.Errorf("%w: a payment already exists for order ID %d", apperr.ErrPaymentNotResumable, order.ID)
	}

	redirectURL := payment.CheckoutURL
	if redirectURL == "" {
		redirectURL = rec.CheckoutURL
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%w: payment %s has no checkout URL", apperr.ErrPaymentNotResumable, payment.ID)
	}

	log.Info().Uint("order_id", order.ID).Str("payment_id", payment.ID).Msg("resuming open payment")

	return &InitiatePaymentResult{
		RedirectURL:     redirectURL,
		RemotePaymentID: payment.ID,
		IsExisting:      true,
		WebhookEnabled:  rec.WebhookEnabled,
	}, nil
}

// payable accepts orders that have not been through checkout yet or are
// still awaiting payment.
func payable(order *models.Order, settings *models.PaymentSettings) error {
	if order.Status == "" || order.Status == settings.Statuses.Pending {
		return nil
	}
	return fmt.Errorf("%w: order %d is %s", apperr.ErrOrderNotPayable, order.ID, order.Status)
}

func (s *PaymentService) settlementAmount(order *models.Order, settings *models.PaymentSettings) (decimal.Decimal, error) {
	converter, err := NewCurrencyConverter(s.cfg.StoreCurrency, settings.CurrencyRates)
	if err != nil {
		return decimal.Zero, err
	}
	return converter.Convert(order.Total, s.cfg.StoreCurrency, s.cfg.SettlementCurrency)
}

func (s *PaymentService) buildRequest(order *models.Order, settings *models.PaymentSettings, amount decimal.Decimal, method, issuer string) gateway.PaymentRequest {
	orderID := strconv.FormatUint(uint64(order.ID), 10)

	req := gateway.PaymentRequest{
		Amount:        gateway.Amount{Currency: s.cfg.SettlementCurrency, Value: amount},
		Description:   settings.Description(orderID),
		RedirectURL:   s.ReturnURL(order.ID),
		WebhookURL:    s.WebhookURL(),
		Method:        method,
		Issuer:        issuer,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		BillingAddress: &gateway.Address{
			StreetAndNumber: order.PaymentAddress,
			City:            order.PaymentCity,
			Region:          order.PaymentZone,
			PostalCode:      order.PaymentPostcode,
			Country:         order.PaymentCountry,
		},
		Metadata: map[string]string{gateway.MetadataOrderID: orderID},
	}
	if order.HasShippingAddress() {
		req.ShippingAddress = &gateway.Address{
			StreetAndNumber: order.ShippingAddress,
			City:            order.ShippingCity,
			Region:          order.ShippingZone,
			PostalCode:      order.ShippingPostcode,
			Country:         order.ShippingCountry,
		}
	}
	return req
}

// WebhookURL is the public URL the gateway posts notifications to.
func (s *PaymentService) WebhookURL() string {
	return s.publicBase() + WebhookPath
}

// ReturnURL is where the gateway sends the customer back for an order.
func (s *PaymentService) ReturnURL(orderID uint) string {
	q := url.Values{}
	q.Set("order_id", strconv.FormatUint(uint64(orderID), 10))
	return s.publicBase() + ReturnPath + "?" + q.Encode()
}

// publicBase strips the admin path so callbacks never point into the admin area.
func (s *PaymentService) publicBase() string {
	base := strings.TrimRight(s.cfg.AppURL, "/")
	if admin := strings.Trim(s.cfg.AdminPath, "/"); admin != "" {
		base = strings.TrimSuffix(base, "/"+admin)
	}
	return base
}

// CheckoutView is what the checkout form shows for an order.
type CheckoutView struct {
	Order   *models.Order
	Amount  gateway.Amount
	Methods []MethodOption
}

// CheckoutOptions lists the methods available for an order together with
// the amount the customer will be charged.
func (s *PaymentService) CheckoutOptions(ctx context.Context, orderID uint) (*CheckoutView, error) {
	settings, order, client, err := s.orderClient(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := payable(order, settings); err != nil {
		return nil, err
	}
	amount, err := s.settlementAmount(order, settings)
	if err != nil {
		return nil, err
	}
	methods, err := AvailableMethods(ctx, client, settings, amount)
	if err != nil {
		return nil, err
	}
	return &CheckoutView{
		Order:   order,
		Amount:  gateway.Amount{Currency: s.cfg.SettlementCurrency, Value: amount},
		Methods: methods,
	}, nil
}

// Issuers lists the issuers of method for the credential of an order.
func (s *PaymentService) Issuers(ctx context.Context, orderID uint, method string) ([]gateway.Issuer, error) {
	_, _, client, err := s.orderClient(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return IssuersFor(ctx, client, method)
}

func (s *PaymentService) orderClient(ctx context.Context, orderID uint) (*models.PaymentSettings, *models.Order, gateway.Client, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := gateway.NewClientSet(s.factory, CredentialsOf(settings)).For(order.CustomerSegment)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}
	return settings, order, client, nil
}

// ReturnOutcome is what the return page shows after the gateway redirect.
type ReturnOutcome string

const (
	ReturnSuccess ReturnOutcome = "success"
	ReturnPending ReturnOutcome = "pending"
	ReturnFailed  ReturnOutcome = "failed"
)

// ReturnStatus classifies the current order status for the return page.
// It never changes the order.
func (s *PaymentService) ReturnStatus(ctx context.Context, orderID uint) (ReturnOutcome, *models.Order, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return "", nil, err
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrOrderNotFound) {
			return ReturnFailed, nil, err
		}
		return "", nil, err
	}

	switch order.Status {
	case settings.Statuses.Processing:
		return ReturnSuccess, order, nil
	case settings.Statuses.Pending:
		return ReturnPending, order, nil
	default:
		return ReturnFailed, order, nil
	}
}
