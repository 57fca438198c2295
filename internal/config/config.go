package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "KivuAuth"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultProvider        = "traditional"
	defaultSessionDuration = 60 * time.Minute
	defaultAPITimeout      = 15 * time.Second
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultEasyMethods     = "email,sms"
)

// Providers captures per-provider enablement and the Easy provider's
// allowed verification methods.
type Providers struct {
	TraditionalEnabled bool
	SecureEnabled      bool
	EasyEnabled        bool
	EasyMethods        []string
}

// Config captures application runtime configuration loaded from
// environment variables. DatabaseURL and RedisURL are optional: when
// absent the service falls back to in-memory stores.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	SessionDuration time.Duration
	DefaultProvider string
	Providers       Providers
	APIBaseURL      string
	APITimeout      time.Duration
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
}

// Load reads configuration values from the environment and populates a
// Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-only-secret"),
		SessionDuration: defaultSessionDuration,
		DefaultProvider: getEnv("AUTH_DEFAULT_PROVIDER", defaultProvider),
		Providers: Providers{
			TraditionalEnabled: getBool("AUTH_TRADITIONAL_ENABLED", true),
			SecureEnabled:      getBool("AUTH_SECURE_ENABLED", true),
			EasyEnabled:        getBool("AUTH_EASY_ENABLED", true),
			EasyMethods:        splitCSV(getEnv("AUTH_EASY_METHODS", defaultEasyMethods)),
		},
		APIBaseURL:     getEnv("API_BASE_URL", "https://api.example.com"),
		APITimeout:     defaultAPITimeout,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	// Session duration in minutes; 0 means sessions never expire.
	if v := os.Getenv("SESSION_DURATION_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes < 0 {
			return Config{}, fmt.Errorf("invalid SESSION_DURATION_MINUTES: %q", v)
		}
		cfg.SessionDuration = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		cfg.APITimeout = d
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	switch cfg.DefaultProvider {
	case "traditional", "secure", "easy":
	default:
		return Config{}, fmt.Errorf("invalid AUTH_DEFAULT_PROVIDER: %q", cfg.DefaultProvider)
	}

	for _, method := range cfg.Providers.EasyMethods {
		if method != "email" && method != "sms" {
			return Config{}, fmt.Errorf("invalid AUTH_EASY_METHODS entry: %q", method)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
