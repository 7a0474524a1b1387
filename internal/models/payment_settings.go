package models

import (
	"sort"
	"strings"
	"time"
)

// DescriptionPlaceholder is replaced by the order id in DescriptionTemplate.
const DescriptionPlaceholder = "%"

// MollieMethods are the payment methods offered by the Mollie gateway.
var MollieMethods = []string{
	"banktransfer", "bitcoin", "creditcard", "ideal",
	"mistercash", "paypal", "paysafecard", "sofort",
}

// MethodSetting holds the per-method enabled flag and display order.
type MethodSetting struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	SortOrder int  `json:"sort_order" yaml:"sort_order"`
}

// StatusMapping names the order statuses used for each payment outcome.
type StatusMapping struct {
	Pending    string `json:"pending" yaml:"pending"`
	Processing string `json:"processing" yaml:"processing"`
	Cancelled  string `json:"cancelled" yaml:"cancelled"`
	Expired    string `json:"expired" yaml:"expired"`
	Failed     string `json:"failed" yaml:"failed"`
}

// PaymentSettings is the merchant configuration of the payment module.
// A single row is kept.
type PaymentSettings struct {
	ID                  uint                     `gorm:"primaryKey" json:"id"`
	APIKey              string                   `gorm:"type:varchar(255)" json:"api_key" yaml:"api_key"`
	KeyOverrides        map[string]string        `gorm:"serializer:json" json:"key_overrides" yaml:"key_overrides"`
	Methods             map[string]MethodSetting `gorm:"serializer:json" json:"methods" yaml:"methods"`
	Statuses            StatusMapping            `gorm:"serializer:json" json:"statuses" yaml:"statuses"`
	DescriptionTemplate string                   `gorm:"type:varchar(255)" json:"description_template" yaml:"description_template"`
	ShowIcons           bool                     `json:"show_icons" yaml:"show_icons"`
	// CurrencyRates holds decimal strings, units of a currency per one unit of store currency.
	CurrencyRates map[string]string `gorm:"serializer:json" json:"currency_rates" yaml:"currency_rates"`
	CreatedAt     time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time         `json:"updated_at" yaml:"-"`
}

// DefaultStatusMapping returns the default order statuses.
func DefaultStatusMapping() StatusMapping {
	return StatusMapping{
		Pending:    "pending",
		Processing: "processing",
		Cancelled:  "canceled",
		Expired:    "expired",
		Failed:     "failed",
	}
}

// DefaultPaymentSettings returns unsaved settings with every given method enabled
// in list order.
func DefaultPaymentSettings(methods []string) *PaymentSettings {
	ms := make(map[string]MethodSetting, len(methods))
	for i, m := range methods {
		ms[m] = MethodSetting{Enabled: true, SortOrder: i + 1}
	}
	return &PaymentSettings{
		KeyOverrides:        map[string]string{},
		Methods:             ms,
		Statuses:            DefaultStatusMapping(),
		DescriptionTemplate: "Order " + DescriptionPlaceholder,
		ShowIcons:           false,
		CurrencyRates:       map[string]string{},
	}
}

// MethodEnabled reports whether method is switched on.
func (s *PaymentSettings) MethodEnabled(method string) bool {
	return s.Methods[method].Enabled
}

// Description renders the payment description for an order.
func (s *PaymentSettings) Description(orderID string) string {
	return strings.ReplaceAll(s.DescriptionTemplate, DescriptionPlaceholder, orderID)
}

// OverrideKeyList returns the distinct override keys as a sorted comma-separated list.
func (s *PaymentSettings) OverrideKeyList() string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range s.KeyOverrides {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
