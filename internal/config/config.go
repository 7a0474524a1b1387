package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/gateway"
)

// Config holds process-level settings read from the environment.
// Merchant-editable payment settings live in the payment_settings table instead.
type Config struct {
	Port        string
	Env         string
	AppURL      string
	AdminPath   string
	DatabaseURL string
	RedisURL    string

	GatewayProvider      string
	GatewayBaseURL       string
	MidtransIsProduction bool
	MidtransMethods      []string
	SettlementCurrency   string
	StoreCurrency        string
	SeedAPIKey           string

	FirebaseCredentialsPath string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string
	FirebaseProjectID       string

	NotifyChannel      string
	DefaultCountryCode string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	WahaBaseURL string
	WahaAPIKey  string
	WahaSession string

	SessionTTL       time.Duration
	CheckoutLockTTL  time.Duration
	WebhookRateLimit float64
	SweepInterval    string
	SweepGracePeriod time.Duration
	WorkerInterval   time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using system environment")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		AdminPath:   getEnv("ADMIN_PATH", "/admin"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		GatewayProvider:      getEnv("GATEWAY_PROVIDER", "mollie"),
		GatewayBaseURL:       os.Getenv("GATEWAY_BASE_URL"),
		MidtransIsProduction: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		MidtransMethods:      getList("MIDTRANS_METHODS"),
		SettlementCurrency:   getEnv("SETTLEMENT_CURRENCY", "EUR"),
		StoreCurrency:        getEnv("STORE_CURRENCY", "EUR"),
		SeedAPIKey:           os.Getenv("MOLLIE_API_KEY"),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		FirebaseAPIKey:          os.Getenv("FIREBASE_API_KEY"),
		FirebaseAuthDomain:      os.Getenv("FIREBASE_AUTH_DOMAIN"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),

		NotifyChannel:      getEnv("NOTIFY_CHANNEL", "email"),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "31"),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  getEnv("SMTP_PORT", "587"),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: os.Getenv("EMAIL_FROM"),

		WahaBaseURL: getEnv("WAHA_BASE_URL", "http://waha:3000"),
		WahaAPIKey:  os.Getenv("WAHA_API_KEY"),
		WahaSession: getEnv("WAHA_SESSION", "default"),

		SessionTTL:       getDuration("SESSION_TTL", 2*time.Hour),
		CheckoutLockTTL:  getDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
		WebhookRateLimit: getFloat("WEBHOOK_RATE_LIMIT", 20),
		SweepInterval:    getEnv("SWEEP_RRULE", "FREQ=MINUTELY;INTERVAL=15"),
		SweepGracePeriod: getDuration("SWEEP_GRACE_PERIOD", 15*time.Minute),
		WorkerInterval:   getDuration("WORKER_INTERVAL", time.Minute),
	}

	return cfg
}

// GatewayOptions returns the gateway factory options.
func (c *Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		Provider:             c.GatewayProvider,
		BaseURL:              c.GatewayBaseURL,
		MidtransIsProduction: c.MidtransIsProduction,
		MidtransMethods:      c.MidtransMethods,
	}
}

// IsProduction reports whether the process runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, using default")
		return fallback
	}
	return f
}
