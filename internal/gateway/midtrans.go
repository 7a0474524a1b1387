package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

// midtransOrderPrefix prefixes generated Midtrans order ids: order-{localID}-{unix}.
const midtransOrderPrefix = "order-"

// MidtransClient adapts Snap (create) and Core API (status) to Client.
// Midtrans has no method-listing endpoint, so the enabled methods are configured.
type MidtransClient struct {
	serverKey string
	env       midtrans.EnvironmentType
	methods   []string
	now       func() time.Time
}

// NewMidtransClient creates a Midtrans-backed client for one server key.
func NewMidtransClient(serverKey string, isProduction bool, methods []string) *MidtransClient {
	env := midtrans.Sandbox
	if isProduction {
		env = midtrans.Production
	}
	return &MidtransClient{
		serverKey: serverKey,
		env:       env,
		methods:   methods,
		now:       time.Now,
	}
}

// Name returns the gateway name
func (g *MidtransClient) Name() string {
	return "midtrans"
}

// CreatePayment creates a Snap transaction. The webhook URL is passed as a
// per-request notification override.
func (g *MidtransClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	localID := req.Metadata[MetadataOrderID]
	orderID := fmt.Sprintf("%s%s-%d", midtransOrderPrefix, localID, g.now().Unix())

	var s snap.Client
	s.New(g.serverKey, g.env)
	if req.WebhookURL != "" {
		s.Options.SetPaymentOverrideNotification(req.WebhookURL)
	}

	// Midtrans settles IDR without minor units.
	gross := req.Amount.Value.Round(0).IntPart()

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName:    req.CustomerName,
			Email:    req.CustomerEmail,
			Phone:    req.CustomerPhone,
			BillAddr: toMidtransAddress(req.BillingAddress),
			ShipAddr: toMidtransAddress(req.ShippingAddress),
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    "order-" + localID,
				Name:  truncate(req.Description, 50),
				Price: gross,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: req.RedirectURL,
		},
		CustomField1: localID,
	}
	if req.Method != "" {
		snapReq.EnabledPayments = []snap.SnapPaymentType{snap.SnapPaymentType(req.Method)}
	}

	resp, merr := s.CreateTransaction(snapReq)
	if merr != nil {
		return nil, mapMidtransError(merr)
	}

	return &Payment{
		ID:          orderID,
		Status:      StatusOpen,
		Method:      req.Method,
		Amount:      Amount{Currency: req.Amount.Currency, Value: decimal.NewFromInt(gross)},
		CheckoutURL: resp.RedirectURL,
		Metadata:    map[string]string{MetadataOrderID: localID},
	}, nil
}

// GetPayment checks the transaction status via the Core API.
// The checkout URL is not part of the status response.
func (g *MidtransClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var c coreapi.Client
	c.New(g.serverKey, g.env)

	resp, merr := c.CheckTransaction(id)
	if merr != nil {
		return nil, mapMidtransError(merr)
	}
	if resp.StatusCode == "404" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.StatusMessage)
	}

	payment := &Payment{
		ID:       id,
		Status:   MidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		Method:   resp.PaymentType,
		Metadata: map[string]string{MetadataOrderID: localOrderID(id)},
	}
	if gross, err := decimal.NewFromString(resp.GrossAmount); err == nil {
		payment.Amount = Amount{Currency: resp.Currency, Value: gross}
	}
	return payment, nil
}

// ListMethods returns the configured Snap payment types.
func (g *MidtransClient) ListMethods(ctx context.Context) ([]Method, error) {
	methods := make([]Method, 0, len(g.methods))
	for _, id := range g.methods {
		methods = append(methods, Method{ID: id, Description: id})
	}
	return methods, nil
}

// GetMethod returns a configured Snap payment type. Midtrans has no per-method limits.
func (g *MidtransClient) GetMethod(ctx context.Context, id string) (*Method, error) {
	for _, m := range g.methods {
		if m == id {
			return &Method{ID: id, Description: id}, nil
		}
	}
	return nil, fmt.Errorf("%w: method %s", ErrNotFound, id)
}

// ListIssuers returns nothing; Snap handles bank selection itself.
func (g *MidtransClient) ListIssuers(ctx context.Context) ([]Issuer, error) {
	return nil, nil
}

// MidtransStatus maps a Midtrans transaction status onto the gateway status set.
func MidtransStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "challenge" {
			return StatusAuthorized
		}
		return StatusPaid
	case "settlement":
		return StatusPaid
	case "pending":
		return StatusOpen
	case "cancel":
		return StatusCanceled
	case "expire":
		return StatusExpired
	case "deny", "failure":
		return StatusFailed
	default:
		return transactionStatus
	}
}

func mapMidtransError(merr *midtrans.Error) error {
	switch {
	case merr.StatusCode == http.StatusUnauthorized || merr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, merr.Message)
	case merr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, merr.Message)
	case merr.StatusCode >= 400 && merr.StatusCode < 500:
		verr := &ValidationError{StatusCode: merr.StatusCode, Message: merr.Message}
		if rejectsNotificationURL(merr.Message) {
			verr.Field = FieldWebhookURL
		}
		return verr
	default:
		return fmt.Errorf("%w: %s", ErrTransport, merr.Message)
	}
}

// rejectsNotificationURL recognises Snap errors about the overridden
// notification URL, e.g. "override_notification url is invalid".
func rejectsNotificationURL(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "notification") && strings.Contains(m, "url")
}

// localOrderID extracts the local order id from order-{localID}-{unix}.
func localOrderID(remoteID string) string {
	trimmed := strings.TrimPrefix(remoteID, midtransOrderPrefix)
	if trimmed == remoteID {
		return ""
	}
	idx := strings.LastIndex(trimmed, "-")
	if idx <= 0 {
		return ""
	}
	if _, err := strconv.ParseInt(trimmed[idx+1:], 10, 64); err != nil {
		return ""
	}
	return trimmed[:idx]
}

func toMidtransAddress(a *Address) *midtrans.CustomerAddress {
	if a == nil {
		return nil
	}
	return &midtrans.CustomerAddress{
		Address:     a.StreetAndNumber,
		City:        a.City,
		Postcode:    a.PostalCode,
		CountryCode: a.Country,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
