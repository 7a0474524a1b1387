package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"mollie_bridge_echo/internal/apperr"
)

// CurrencyConverter converts store-currency amounts using fixed rates.
// Rates are units of a currency per one unit of the store currency.
type CurrencyConverter struct {
	storeCurrency string
	rates         map[string]decimal.Decimal
}

// NewCurrencyConverter parses rates given as decimal strings.
func NewCurrencyConverter(storeCurrency string, rates map[string]string) (*CurrencyConverter, error) {
	c := &CurrencyConverter{
		storeCurrency: strings.ToUpper(storeCurrency),
		rates:         make(map[string]decimal.Decimal, len(rates)+1),
	}
	for currency, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: rate for %s: %v", apperr.ErrConfig, currency, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: rate for %s must be positive", apperr.ErrConfig, currency)
		}
		c.rates[strings.ToUpper(currency)] = rate
	}
	c.rates[c.storeCurrency] = decimal.NewFromInt(1)
	return c, nil
}

// Convert converts amount between two currencies and rounds half away from
// zero to 2 decimals. A result that is not positive is apperr.ErrInvalidAmount.
func (c *CurrencyConverter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fromRate, ok := c.rates[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", apperr.ErrConfig, from)
	}
	toRate, ok := c.rates[strings.ToUpper(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", apperr.ErrConfig, to)
	}

	converted := amount
	if !fromRate.Equal(toRate) {
		converted = amount.Div(fromRate).Mul(toRate)
	}
	converted = converted.Round(2)

	if !converted.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s converts to %s %s", apperr.ErrInvalidAmount,
			amount.StringFixed(2), from, converted.StringFixed(2), to)
	}
	return converted, nil
}
