package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

// SettingsValidationError carries per-field messages for the settings form.
type SettingsValidationError struct {
	Fields map[string]string
}

func (e *SettingsValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid settings: " + strings.Join(names, ", ")
}

// Unwrap lets callers test for apperr.ErrConfig.
func (e *SettingsValidationError) Unwrap() error {
	return apperr.ErrConfig
}

// SettingsStore loads and saves the single PaymentSettings row.
type SettingsStore struct {
	db             *gorm.DB
	provider       string
	defaultMethods []string
	seedAPIKey     string
}

// NewSettingsStore creates a store. defaultMethods and seedAPIKey are used
// until the merchant saves settings for the first time.
func NewSettingsStore(db *gorm.DB, provider string, defaultMethods []string, seedAPIKey string) *SettingsStore {
	return &SettingsStore{
		db:             db,
		provider:       provider,
		defaultMethods: defaultMethods,
		seedAPIKey:     seedAPIKey,
	}
}

// Load returns the saved settings, or unsaved defaults when none exist.
func (s *SettingsStore) Load(ctx context.Context) (*models.PaymentSettings, error) {
	var settings models.PaymentSettings
	err := s.db.WithContext(ctx).Order("id ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := models.DefaultPaymentSettings(s.defaultMethods)
		defaults.APIKey = s.seedAPIKey
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment settings: %w", err)
	}
	if settings.KeyOverrides == nil {
		settings.KeyOverrides = map[string]string{}
	}
	if settings.Methods == nil {
		settings.Methods = map[string]models.MethodSetting{}
	}
	if settings.CurrencyRates == nil {
		settings.CurrencyRates = map[string]string{}
	}
	return &settings, nil
}

// Save validates and stores settings, replacing the existing row.
func (s *SettingsStore) Save(ctx context.Context, settings *models.PaymentSettings) error {
	if err := ValidateSettings(settings, s.provider); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PaymentSettings
		err := tx.Order("id ASC").First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			settings.ID = 0
			return tx.Create(settings).Error
		case err != nil:
			return err
		default:
			settings.ID = existing.ID
			settings.CreatedAt = existing.CreatedAt
			return tx.Save(settings).Error
		}
	})
}

// ValidateSettings checks the fields the payment module cannot work without.
func ValidateSettings(settings *models.PaymentSettings, provider string) error {
	fields := make(map[string]string)

	apiKey := strings.TrimSpace(settings.APIKey)
	switch {
	case apiKey == "":
		fields["api_key"] = "API key is required"
	case (provider == "" || provider == "mollie") && !looksLikeMollieKey(apiKey):
		fields["api_key"] = "API key must start with live_ or test_"
	}
	for segment, key := range settings.KeyOverrides {
		if key != "" && (provider == "" || provider == "mollie") && !looksLikeMollieKey(key) {
			fields["key_overrides."+segment] = "API key must start with live_ or test_"
		}
	}

	if strings.TrimSpace(settings.DescriptionTemplate) == "" {
		fields["description_template"] = "Description is required"
	}

	st := settings.Statuses
	for name, value := range map[string]string{
		"statuses.pending":    st.Pending,
		"statuses.processing": st.Processing,
		"statuses.cancelled":  st.Cancelled,
		"statuses.expired":    st.Expired,
		"statuses.failed":     st.Failed,
	} {
		if strings.TrimSpace(value) == "" {
			fields[name] = "Order status is required"
		}
	}

	for currency, rate := range settings.CurrencyRates {
		d, err := decimal.NewFromString(rate)
		if err != nil || !d.IsPositive() {
			fields["currency_rates."+currency] = "Rate must be a positive number"
		}
	}

	if len(fields) > 0 {
		return &SettingsValidationError{Fields: fields}
	}
	return nil
}

// CredentialsOf returns the gateway credentials configured in settings.
func CredentialsOf(settings *models.PaymentSettings) gateway.Credentials {
	return gateway.Credentials{
		BaseKey:   settings.APIKey,
		Overrides: settings.KeyOverrides,
	}
}

func looksLikeMollieKey(key string) bool {
	return strings.HasPrefix(key, "live_") || strings.HasPrefix(key, "test_")
}

// GatewayStatus reports whether the base API key can reach the gateway.
type GatewayStatus struct {
	OK         bool     `json:"ok"`
	Message    string   `json:"message"`
	InvalidKey bool     `json:"invalid_key"`
	Methods    []string `json:"methods"`
}

// CheckGateway lists the methods allowed for the base key. Any failure is
// reported in the status rather than returned.
func CheckGateway(ctx context.Context, factory gateway.Factory, settings *models.PaymentSettings) GatewayStatus {
	if strings.TrimSpace(settings.APIKey) == "" {
		return GatewayStatus{Message: "No API key configured.", Methods: []string{}}
	}

	methods, err := factory(settings.APIKey).ListMethods(ctx)
	if err != nil {
		return GatewayStatus{
			Message:    err.Error(),
			InvalidKey: errors.Is(err, gateway.ErrUnauthorized),
			Methods:    []string{},
		}
	}

	ids := make([]string, 0, len(methods))
	for _, m := range methods {
		ids = append(ids, m.ID)
	}
	return GatewayStatus{OK: true, Message: "OK", Methods: ids}
}
