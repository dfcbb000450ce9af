// Package config loads service configuration from environment variables
// (CACP_-prefixed) and clinic-profile YAML files, grounded on the
// teacher's pkg/config.Load (env-var struct with defaults) and
// pkg/config.LoadProfile (per-entity YAML loader via gopkg.in/yaml.v3).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process-wide settings read once at startup.
type Config struct {
	Environment string // "dev" | "staging" | "prod"
	Role        string

	HMACSecret string

	GitHubToken         string
	GitHubOwner         string
	GitHubRepo          string
	GitHubWebhookSecret string

	OPAURL     string
	OPATimeout time.Duration

	PostgresDSN string
	RedisURL    string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	TwilioStatusSecret string

	AdminJWTSecret string

	ProfilesDir string

	HTTPAddr      string
	PublicBaseURL string // this service's externally-reachable base URL, used to validate Twilio signatures

	RateLimitRPS   int
	RateLimitBurst int

	QuietHoursStart int
	QuietHoursEnd   int
	Timezone        string
	RateLimit       int
	RateWindow      time.Duration
	MaxRetries      int
}

// Load reads configuration from the environment, applying the same
// "read, fall back to a safe default" shape as the teacher's config.Load.
func Load() *Config {
	return &Config{
		Environment: getEnv("CACP_ENVIRONMENT", "dev"),
		Role:        getEnv("CACP_ROLE", "admin"),

		HMACSecret: os.Getenv("CACP_HMAC_SECRET"),

		GitHubToken:         os.Getenv("CACP_GITHUB_TOKEN"),
		GitHubOwner:         os.Getenv("CACP_GITHUB_OWNER"),
		GitHubRepo:          os.Getenv("CACP_GITHUB_REPO"),
		GitHubWebhookSecret: os.Getenv("CACP_GITHUB_WEBHOOK_SECRET"),

		OPAURL:     os.Getenv("CACP_OPA_URL"),
		OPATimeout: getEnvDuration("CACP_OPA_TIMEOUT", 5*time.Second),

		PostgresDSN: getEnv("CACP_PG_DSN", "postgres://cacp@localhost:5432/cacp?sslmode=disable"),
		RedisURL:    getEnv("CACP_REDIS_URL", "redis://localhost:6379/0"),

		TwilioAccountSID:   os.Getenv("CACP_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("CACP_TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("CACP_TWILIO_FROM_NUMBER"),
		TwilioStatusSecret: os.Getenv("CACP_TWILIO_STATUS_SECRET"),

		AdminJWTSecret: os.Getenv("CACP_ADMIN_JWT_SECRET"),

		ProfilesDir: getEnv("CACP_PROFILES_DIR", "./profiles"),

		HTTPAddr:      getEnv("CACP_HTTP_ADDR", ":8080"),
		PublicBaseURL: os.Getenv("CACP_PUBLIC_BASE_URL"),

		RateLimitRPS:   getEnvInt("CACP_RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("CACP_RATE_LIMIT_BURST", 40),

		QuietHoursStart: getEnvInt("CACP_QUIET_HOURS_START", 21),
		QuietHoursEnd:   getEnvInt("CACP_QUIET_HOURS_END", 8),
		Timezone:        getEnv("CACP_TIMEZONE", "UTC"),
		RateLimit:       getEnvInt("CACP_PATIENT_RATE_LIMIT", 3),
		RateWindow:      getEnvDuration("CACP_PATIENT_RATE_WINDOW", 24*time.Hour),
		MaxRetries:      getEnvInt("CACP_MAX_RETRIES", 3),
	}
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
