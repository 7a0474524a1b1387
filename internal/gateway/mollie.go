package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMollieBaseURL = "https://api.mollie.com"
	userAgent            = "MollieBridgeEcho/1.0"
)

// MollieClient talks to the Mollie v2 REST API with a single API key.
type MollieClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMollieClient creates a Mollie client. An empty baseURL selects the public API.
func NewMollieClient(apiKey, baseURL string, httpClient *http.Client) *MollieClient {
	if baseURL == "" {
		baseURL = DefaultMollieBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MollieClient{apiKey: apiKey, baseURL: baseURL, client: httpClient}
}

// Name returns the gateway name
func (m *MollieClient) Name() string {
	return "mollie"
}

type mollieAmount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type mollieAddress struct {
	StreetAndNumber string `json:"streetAndNumber,omitempty"`
	City            string `json:"city,omitempty"`
	Region          string `json:"region,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	Country         string `json:"country,omitempty"`
}

type molliePaymentRequest struct {
	Amount          mollieAmount      `json:"amount"`
	Description     string            `json:"description"`
	RedirectURL     string            `json:"redirectUrl"`
	WebhookURL      string            `json:"webhookUrl,omitempty"`
	Method          string            `json:"method,omitempty"`
	Issuer          string            `json:"issuer,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	BillingAddress  *mollieAddress    `json:"billingAddress,omitempty"`
	ShippingAddress *mollieAddress    `json:"shippingAddress,omitempty"`
}

type mollieLink struct {
	Href string `json:"href"`
}

type molliePayment struct {
	ID       string                 `json:"id"`
	Status   string                 `json:"status"`
	Method   string                 `json:"method"`
	Amount   mollieAmount           `json:"amount"`
	Metadata map[string]interface{} `json:"metadata"`
	Links    struct {
		Checkout *mollieLink `json:"checkout"`
	} `json:"_links"`
}

type mollieIssuer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image struct {
		Size1x string `json:"size1x"`
	} `json:"image"`
}

type mollieMethod struct {
	ID            string        `json:"id"`
	Description   string        `json:"description"`
	MinimumAmount *mollieAmount `json:"minimumAmount"`
	MaximumAmount *mollieAmount `json:"maximumAmount"`
	Image         struct {
		Size1x string `json:"size1x"`
		Size2x string `json:"size2x"`
	} `json:"image"`
	Issuers []mollieIssuer `json:"issuers"`
}

type mollieMethodList struct {
	Embedded struct {
		Methods []mollieMethod `json:"methods"`
	} `json:"_embedded"`
}

type mollieError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Field  string `json:"field"`
}

// CreatePayment creates a payment via POST /v2/payments
func (m *MollieClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	payload := molliePaymentRequest{
		Amount: mollieAmount{
			Currency: req.Amount.Currency,
			Value:    req.Amount.Value.StringFixed(2),
		},
		Description:     req.Description,
		RedirectURL:     req.RedirectURL,
		WebhookURL:      req.WebhookURL,
		Method:          req.Method,
		Issuer:          req.Issuer,
		Metadata:        req.Metadata,
		BillingAddress:  toMollieAddress(req.BillingAddress),
		ShippingAddress: toMollieAddress(req.ShippingAddress),
	}

	var out molliePayment
	if err := m.do(ctx, http.MethodPost, "/v2/payments", payload, &out); err != nil {
		return nil, err
	}
	return out.toPayment()
}

// GetPayment fetches a payment via GET /v2/payments/{id}
func (m *MollieClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out molliePayment
	if err := m.do(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.toPayment()
}

// ListMethods lists the enabled methods via GET /v2/methods
func (m *MollieClient) ListMethods(ctx context.Context) ([]Method, error) {
	var out mollieMethodList
	if err := m.do(ctx, http.MethodGet, "/v2/methods", nil, &out); err != nil {
		return nil, err
	}

	methods := make([]Method, 0, len(out.Embedded.Methods))
	for _, mm := range out.Embedded.Methods {
		method, err := mm.toMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, *method)
	}
	return methods, nil
}

// GetMethod fetches one method via GET /v2/methods/{id}
func (m *MollieClient) GetMethod(ctx context.Context, id string) (*Method, error) {
	var out mollieMethod
	if err := m.do(ctx, http.MethodGet, "/v2/methods/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.toMethod()
}

// ListIssuers flattens the issuers of all methods via GET /v2/methods?include=issuers
func (m *MollieClient) ListIssuers(ctx context.Context) ([]Issuer, error) {
	var out mollieMethodList
	if err := m.do(ctx, http.MethodGet, "/v2/methods?include=issuers", nil, &out); err != nil {
		return nil, err
	}

	var issuers []Issuer
	for _, mm := range out.Embedded.Methods {
		for _, is := range mm.Issuers {
			issuers = append(issuers, Issuer{
				ID:     is.ID,
				Name:   is.Name,
				Method: mm.ID,
				Image:  is.Image.Size1x,
			})
		}
	}
	return issuers, nil
}

func (m *MollieClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode >= 400 {
		return mollieStatusError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func mollieStatusError(status int, body []byte) error {
	var apiErr mollieError
	_ = json.Unmarshal(body, &apiErr)

	message := apiErr.Detail
	if message == "" {
		message = apiErr.Title
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransport, status, message)
	default:
		return &ValidationError{StatusCode: status, Field: apiErr.Field, Message: message}
	}
}

func toMollieAddress(a *Address) *mollieAddress {
	if a == nil {
		return nil
	}
	return &mollieAddress{
		StreetAndNumber: a.StreetAndNumber,
		City:            a.City,
		Region:          a.Region,
		PostalCode:      a.PostalCode,
		Country:         a.Country,
	}
}

func (a *mollieAmount) toAmount() (*Amount, error) {
	if a == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(a.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", a.Value, err)
	}
	return &Amount{Currency: a.Currency, Value: value}, nil
}

func (p molliePayment) toPayment() (*Payment, error) {
	payment := &Payment{
		ID:       p.ID,
		Status:   p.Status,
		Method:   p.Method,
		Metadata: make(map[string]string, len(p.Metadata)),
	}
	// Metadata is free-form JSON; numeric order ids come back as float64.
	for k, v := range p.Metadata {
		switch val := v.(type) {
		case string:
			payment.Metadata[k] = val
		case float64:
			payment.Metadata[k] = decimal.NewFromFloat(val).String()
		case nil:
		default:
			payment.Metadata[k] = fmt.Sprint(val)
		}
	}
	if p.Amount.Value != "" {
		amount, err := p.Amount.toAmount()
		if err != nil {
			return nil, err
		}
		payment.Amount = *amount
	}
	if p.Links.Checkout != nil {
		payment.CheckoutURL = p.Links.Checkout.Href
	}
	return payment, nil
}

func (mm mollieMethod) toMethod() (*Method, error) {
	minimum, err := mm.MinimumAmount.toAmount()
	if err != nil {
		return nil, err
	}
	maximum, err := mm.MaximumAmount.toAmount()
	if err != nil {
		return nil, err
	}
	return &Method{
		ID:            mm.ID,
		Description:   mm.Description,
		MinimumAmount: minimum,
		MaximumAmount: maximum,
		Image:         mm.Image.Size1x,
	}, nil
}
