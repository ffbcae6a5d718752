package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	RedisURL string

	// Merchant backend the bridge round-trips to for totals and payment
	// processing.
	BackendBaseURL string
	BackendTimeout time.Duration

	// Wallet provider identity and acceptance parameters.
	MerchantID        string
	MerchantName      string
	GatewayID         string
	GatewayMerchantID string
	CardNetworks      []string
	CardAuthMethods   []string
	ShippingCountries []string
	PhoneRequired     bool
	EmailRequired     bool

	SessionTTL       time.Duration
	ReadinessTimeout time.Duration
	PrefetchTTL      time.Duration

	CallbackReplayTTL time.Duration
	CallbackRateLimit string

	CORSAllowedOrigins []string
	ScrollDuration     time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		BackendBaseURL:     strings.TrimRight(k.String("BACKEND_BASE_URL"), "/"),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "10s"),
		MerchantID:         k.String("WALLET_MERCHANT_ID"),
		MerchantName:       k.String("WALLET_MERCHANT_NAME"),
		GatewayID:          k.String("WALLET_GATEWAY_ID"),
		GatewayMerchantID:  k.String("WALLET_GATEWAY_MERCHANT_ID"),
		CardNetworks:       splitAndTrim(valueOrDefault(k.String("WALLET_CARD_NETWORKS"), "VISA,MASTERCARD")),
		CardAuthMethods:    splitAndTrim(valueOrDefault(k.String("WALLET_CARD_AUTH_METHODS"), "PAN_ONLY,CRYPTOGRAM_3DS")),
		ShippingCountries:  splitAndTrim(k.String("WALLET_SHIPPING_COUNTRIES")),
		PhoneRequired:      parseBool(k.String("WALLET_PHONE_REQUIRED")),
		EmailRequired:      parseBool(k.String("WALLET_EMAIL_REQUIRED")),
		SessionTTL:         parseDuration(k.String("SESSION_TTL"), "30m"),
		ReadinessTimeout:   parseDuration(k.String("READINESS_TIMEOUT"), "10s"),
		PrefetchTTL:        parseDuration(k.String("PREFETCH_TTL"), "10m"),
		CallbackReplayTTL:  parseDuration(k.String("CALLBACK_REPLAY_TTL"), "1h"),
		CallbackRateLimit:  valueOrDefault(k.String("CALLBACK_RATE_LIMIT"), "120-M"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ScrollDuration:     parseDuration(k.String("SCROLL_DURATION"), "500ms"),
	}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.MerchantID == "" {
		return nil, errors.New("WALLET_MERCHANT_ID is required")
	}
	if cfg.GatewayID == "" {
		return nil, errors.New("WALLET_GATEWAY_ID is required")
	}
	if cfg.GatewayMerchantID == "" {
		return nil, errors.New("WALLET_GATEWAY_MERCHANT_ID is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
