package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Client is the outbound contract with the payment gateway.
// Implementations are bound to a single API key.
type Client interface {
	// CreatePayment creates a remote payment and returns it with its checkout URL.
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)

	// GetPayment fetches the authoritative state of a remote payment.
	GetPayment(ctx context.Context, id string) (*Payment, error)

	// ListMethods returns the methods enabled for the client's API key.
	ListMethods(ctx context.Context) ([]Method, error)

	// GetMethod returns a single method including its amount limits.
	GetMethod(ctx context.Context, id string) (*Method, error)

	// ListIssuers returns issuers for every method that has them.
	ListIssuers(ctx context.Context) ([]Issuer, error)

	// Name returns the gateway provider name
	Name() string
}

// Payment status values as reported by the gateway.
const (
	StatusOpen       = "open"
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusPaid       = "paid"
	StatusCanceled   = "canceled"
	StatusExpired    = "expired"
	StatusFailed     = "failed"
)

// MetadataOrderID is the metadata key that correlates a remote payment with a local order.
const MetadataOrderID = "order_id"

// Amount is a currency-qualified fixed-point value.
type Amount struct {
	Currency string
	Value    decimal.Decimal
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.StringFixed(2), a.Currency)
}

// Address carries billing or shipping details for fraud checks.
type Address struct {
	StreetAndNumber string
	City            string
	Region          string
	PostalCode      string
	Country         string
}

// PaymentRequest is the payload for CreatePayment.
// An empty WebhookURL means no asynchronous notifications are requested.
type PaymentRequest struct {
	Amount          Amount
	Description     string
	RedirectURL     string
	WebhookURL      string
	Method          string
	Issuer          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	BillingAddress  *Address
	ShippingAddress *Address
	Metadata        map[string]string
}

// Payment is a remote payment resource.
type Payment struct {
	ID          string
	Status      string
	Method      string
	Amount      Amount
	CheckoutURL string
	Metadata    map[string]string
}

// IsOpen reports whether the customer can still complete the payment.
func (p *Payment) IsOpen() bool {
	return p.Status == StatusOpen
}

// IsTerminal reports whether the status is final. Statuses the gateway may still
// move forward (open, pending, authorized) are not terminal.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusOpen, StatusPending, StatusAuthorized:
		return false
	default:
		return true
	}
}

// OrderID returns the local order identifier embedded in the payment metadata.
func (p *Payment) OrderID() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[MetadataOrderID]
}

// Method describes a payment method and its amount limits.
type Method struct {
	ID            string
	Description   string
	MinimumAmount *Amount
	MaximumAmount *Amount
	Image         string
}

// Accepts reports whether amount falls within the method's limits.
func (m *Method) Accepts(amount decimal.Decimal) bool {
	if m.MinimumAmount != nil && !m.MinimumAmount.Value.IsZero() && m.MinimumAmount.Value.GreaterThan(amount) {
		return false
	}
	if m.MaximumAmount != nil && !m.MaximumAmount.Value.IsZero() && m.MaximumAmount.Value.LessThan(amount) {
		return false
	}
	return true
}

// Issuer is a sub-selection within a method, e.g. a bank for iDEAL.
type Issuer struct {
	ID     string
	Name   string
	Method string
	Image  string
}

var (
	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("gateway: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist for the key.
	ErrNotFound = errors.New("gateway: not found")
	// ErrTransport wraps network failures and 5xx responses.
	ErrTransport = errors.New("gateway: unavailable")
	// ErrMissingAPIKey is returned when no API key is configured for the context.
	ErrMissingAPIKey = errors.New("gateway: no api key configured")
)

// ValidationError is a field-level rejection of a request.
type ValidationError struct {
	StatusCode int
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("gateway: invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("gateway: %s", e.Message)
}

// FieldWebhookURL is the request field a validation error names when the
// gateway rejects the notification URL.
const FieldWebhookURL = "webhookUrl"

// IsFieldError reports whether err is a validation error on the named field.
func IsFieldError(err error, field string) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Field == field
	}
	return false
}
