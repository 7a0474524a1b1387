package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Credentials is the base API key plus sparse per-customer-segment overrides.
type Credentials struct {
	BaseKey   string
	Overrides map[string]string
}

// Resolve returns the override for segmentID when one is set, else the base key.
func (c Credentials) Resolve(segmentID string) string {
	if segmentID != "" {
		if key := c.Overrides[segmentID]; key != "" {
			return key
		}
	}
	return c.BaseKey
}

// ProbeOrder returns every distinct configured key, base key first.
// Override keys follow in sorted order so probing is reproducible.
func (c Credentials) ProbeOrder() []string {
	seen := make(map[string]bool)
	var keys []string

	if c.BaseKey != "" {
		keys = append(keys, c.BaseKey)
		seen[c.BaseKey] = true
	}

	var overrides []string
	for _, key := range c.Overrides {
		if key != "" && !seen[key] {
			overrides = append(overrides, key)
			seen[key] = true
		}
	}
	sort.Strings(overrides)

	return append(keys, overrides...)
}

// Factory builds a Client bound to one API key.
type Factory func(apiKey string) Client

// ClientSet memoizes one Client per API key for the lifetime of a single
// logical request. It must not be shared across requests.
type ClientSet struct {
	factory Factory
	creds   Credentials
	clients map[string]Client
}

// NewClientSet creates a request-scoped client set.
func NewClientSet(factory Factory, creds Credentials) *ClientSet {
	return &ClientSet{
		factory: factory,
		creds:   creds,
		clients: make(map[string]Client),
	}
}

// For returns the client for a checkout customer segment.
func (s *ClientSet) For(segmentID string) (Client, error) {
	key := s.creds.Resolve(segmentID)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	return s.forKey(key), nil
}

func (s *ClientSet) forKey(key string) Client {
	if c, ok := s.clients[key]; ok {
		return c
	}
	c := s.factory(key)
	s.clients[key] = c
	return c
}

// ProbePayment fetches a payment when the originating segment is unknown.
// It tries the base key first, then every override key, moving on only when
// the key is rejected or cannot see the payment. Transport failures abort.
func (s *ClientSet) ProbePayment(ctx context.Context, id string) (*Payment, error) {
	keys := s.creds.ProbeOrder()
	if len(keys) == 0 {
		return nil, ErrMissingAPIKey
	}

	var lastErr error
	for _, key := range keys {
		payment, err := s.forKey(key).GetPayment(ctx, id)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("payment %s not retrievable with %d configured key(s): %w", id, len(keys), lastErr)
}
