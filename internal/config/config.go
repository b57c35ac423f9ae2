package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	RedisURL              string
	JWTSecret             string
	JWTIssuer             string
	SettingsEncryptionKey string
	CORSAllowedOrigins    []string
	PublicBaseURL         string

	PendingBookingTTL   time.Duration
	IdempotencyTTL      time.Duration
	CheckoutRateLimit   string
	WebhookMaxBodyBytes int64
	CatalogCacheTTL     time.Duration

	ListDefaultLimit int
	ListMaxLimit     int

	QueueConcurrency int
	AdminAlertEmail  string
	MigrateOnStart   bool

	SecurityHeaders bool
	EnableHSTS      bool
	APIMaxBodyBytes int64

	AdminTokenTTL time.Duration

	StripeAPIBase        string
	StripeTimeout        time.Duration
	StripeBreakerMinReq  int
	StripeBreakerOpenFor time.Duration

	AuditEnabled      bool
	AuditSamplingRate float64

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing settings (OBS_* keys).
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   []float64
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:           k.String("DATABASE_URL"),
		RedisURL:              k.String("REDIS_URL"),
		JWTSecret:             k.String("JWT_SECRET"),
		JWTIssuer:             valueOrDefault(k.String("JWT_ISSUER"), "booking-api"),
		SettingsEncryptionKey: k.String("SETTINGS_ENCRYPTION_KEY"),
		CORSAllowedOrigins:    splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PublicBaseURL:         strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		PendingBookingTTL:     parseDuration(k.String("PENDING_BOOKING_TTL"), "1h"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutRateLimit:     valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "20-M"),
		WebhookMaxBodyBytes:   int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 65536)),
		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		ListDefaultLimit:      parseInt(k.String("LIST_DEFAULT_LIMIT"), 20),
		ListMaxLimit:          parseInt(k.String("LIST_MAX_LIMIT"), 100),
		QueueConcurrency:      parseInt(k.String("QUEUE_CONCURRENCY"), 5),
		AdminAlertEmail:       strings.TrimSpace(k.String("ADMIN_ALERT_EMAIL")),
		MigrateOnStart:        parseBool(valueOrDefault(k.String("MIGRATE_ON_START"), "true")),
		SecurityHeaders:       parseBool(valueOrDefault(k.String("SECURITY_HEADERS"), "true")),
		EnableHSTS:            parseBool(k.String("SECURITY_HSTS")),
		APIMaxBodyBytes:       int64(parseInt(k.String("API_MAX_BODY_BYTES"), 1<<20)),
		AdminTokenTTL:         parseDuration(k.String("ADMIN_TOKEN_TTL"), "12h"),
		StripeAPIBase:         strings.TrimRight(strings.TrimSpace(k.String("STRIPE_API_BASE")), "/"),
		StripeTimeout:         parseDuration(k.String("STRIPE_TIMEOUT"), "15s"),
		StripeBreakerMinReq:   parseInt(k.String("STRIPE_BREAKER_MIN_REQUESTS"), 5),
		StripeBreakerOpenFor:  parseDuration(k.String("STRIPE_BREAKER_OPEN_FOR"), "30s"),
		AuditEnabled:          parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),
		AuditSamplingRate:     parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(valueOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), "true")),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "booking"),
			MetricsBuckets:   parseBuckets(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:   parseBool(valueOrDefault(k.String("OBS_ENABLE_TRACING"), "false")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SettingsEncryptionKey == "" {
		return nil, errors.New("SETTINGS_ENCRYPTION_KEY is required")
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

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseBuckets(value string) []float64 {
	var out []float64
	for _, part := range splitAndTrim(value) {
		if v := parseFloat(part, 0); v > 0 {
			out = append(out, v)
		}
	}
	return out
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
