package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

func eur(v string) *gateway.Amount {
	return &gateway.Amount{Currency: "EUR", Value: decimal.RequireFromString(v)}
}

func TestAvailableMethods(t *testing.T) {
	fake := newFakeGateway()
	fake.methods = []gateway.Method{
		{ID: "ideal", Description: "iDEAL", MinimumAmount: eur("0.01"), MaximumAmount: eur("50000"), Image: "ideal.png"},
		{ID: "creditcard", Description: "Credit card", MinimumAmount: eur("0.01"), MaximumAmount: eur("2000"), Image: "cc.png"},
		{ID: "paysafecard", Description: "paysafecard", MinimumAmount: eur("1"), MaximumAmount: eur("20")},
		{ID: "bitcoin", Description: "Bitcoin"},
		{ID: "sofort", Description: "SOFORT"},
	}
	fake.methodErr["bitcoin"] = errors.New("bitcoin temporarily unavailable")

	settings := models.DefaultPaymentSettings(models.MollieMethods)
	settings.Methods["sofort"] = models.MethodSetting{Enabled: false}
	settings.Methods["creditcard"] = models.MethodSetting{Enabled: true, SortOrder: 0}

	options, err := AvailableMethods(context.Background(), fake, settings, decimal.RequireFromString("45.00"))
	require.NoError(t, err)

	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	// paysafecard is over its maximum, sofort is disabled.
	assert.Equal(t, []string{"creditcard", "bitcoin", "ideal"}, ids)

	assert.Equal(t, "Credit card", options[0].Title)
	assert.Empty(t, options[0].Image, "icons are off by default")
	assert.Equal(t, "bitcoin temporarily unavailable", options[1].Title)
}

func TestAvailableMethodsShowsIcons(t *testing.T) {
	fake := newFakeGateway()
	fake.methods = []gateway.Method{{ID: "ideal", Description: "iDEAL", Image: "ideal.png"}}

	settings := models.DefaultPaymentSettings([]string{"ideal"})
	settings.ShowIcons = true

	options, err := AvailableMethods(context.Background(), fake, settings, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "ideal.png", options[0].Image)
}

func TestAvailableMethodsListError(t *testing.T) {
	settings := models.DefaultPaymentSettings(models.MollieMethods)
	_, err := AvailableMethods(context.Background(), unauthorizedGateway{}, settings, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestIssuersFor(t *testing.T) {
	fake := newFakeGateway()
	fake.issuers = []gateway.Issuer{
		{ID: "ideal_ABNANL2A", Name: "ABN AMRO", Method: "ideal"},
		{ID: "ideal_INGBNL2A", Name: "ING", Method: "ideal"},
		{ID: "kbc", Name: "KBC", Method: "kbc"},
	}

	issuers, err := IssuersFor(context.Background(), fake, "ideal")
	require.NoError(t, err)
	require.Len(t, issuers, 2)
	assert.Equal(t, "ABN AMRO", issuers[0].Name)
}
