package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

// maxMethodLookups bounds concurrent GetMethod calls per checkout.
const maxMethodLookups = 4

// MethodOption is a payment method offered at checkout.
type MethodOption struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image,omitempty"`
	SortOrder int    `json:"sort_order"`
	// Error is set when the gateway failed to describe the method.
	Error string `json:"error,omitempty"`
}

// AvailableMethods returns the enabled methods the credential accepts for
// amount, ordered by the configured sort order. Methods are looked up
// concurrently. A method whose lookup fails is still listed with the error
// as its title; a method whose limits exclude amount is dropped.
func AvailableMethods(ctx context.Context, client gateway.Client, settings *models.PaymentSettings, amount decimal.Decimal) ([]MethodOption, error) {
	accepted, err := client.ListMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list methods: %w", err)
	}

	var candidates []string
	for _, m := range accepted {
		if settings.MethodEnabled(m.ID) {
			candidates = append(candidates, m.ID)
		}
	}

	var (
		mu      sync.Mutex
		options = make([]MethodOption, 0, len(candidates))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMethodLookups)

	for _, id := range candidates {
		id := id
		g.Go(func() error {
			option := MethodOption{ID: id, SortOrder: settings.Methods[id].SortOrder}

			method, err := client.GetMethod(gctx, id)
			switch {
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("method", id).Msg("failed to load payment method")
				option.Title = err.Error()
			case !method.Accepts(amount):
				return nil
			default:
				option.Title = method.Description
				if settings.ShowIcons {
					option.Image = method.Image
				}
			}

			mu.Lock()
			options = append(options, option)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(options, func(i, j int) bool {
		if options[i].SortOrder != options[j].SortOrder {
			return options[i].SortOrder < options[j].SortOrder
		}
		return options[i].ID < options[j].ID
	})
	return options, nil
}

// IssuersFor returns the issuers belonging to method.
func IssuersFor(ctx context.Context, client gateway.Client, method string) ([]gateway.Issuer, error) {
	all, err := client.ListIssuers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	var issuers []gateway.Issuer
	for _, is := range all {
		if is.Method == method {
			issuers = append(issuers, is)
		}
	}
	return issuers, nil
}
