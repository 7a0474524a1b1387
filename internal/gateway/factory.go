package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Options selects and configures the gateway provider.
type Options struct {
	Provider             string
	BaseURL              string
	MidtransIsProduction bool
	MidtransMethods      []string
	HTTPClient           *http.Client
}

// DefaultMidtransMethods are the Snap payment types offered when none are configured.
var DefaultMidtransMethods = []string{
	"credit_card", "bca_va", "bni_va", "bri_va", "permata_va",
	"gopay", "shopeepay", "qris",
}

// NewFactory returns a Factory for the configured provider.
func NewFactory(opts Options) (Factory, error) {
	switch opts.Provider {
	case "", "mollie":
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 30 * time.Second}
		}
		log.Info().Str("provider", "mollie").Msg("using Mollie payment gateway")
		return func(apiKey string) Client {
			return NewMollieClient(apiKey, opts.BaseURL, httpClient)
		}, nil

	case "midtrans":
		methods := opts.MidtransMethods
		if len(methods) == 0 {
			methods = DefaultMidtransMethods
		}
		log.Info().Str("provider", "midtrans").Bool("production", opts.MidtransIsProduction).Msg("using Midtrans payment gateway")
		return func(apiKey string) Client {
			return NewMidtransClient(apiKey, opts.MidtransIsProduction, methods)
		}, nil

	default:
		return nil, fmt.Errorf("unknown gateway provider %q", opts.Provider)
	}
}
