package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// ClinicTimezone decides what "today" means for date bounds and slot filtering.
	ClinicTimezone string

	// Availability backend
	CatalogBaseURL      string
	CatalogProviderMode string // "filtered" or "catalog"
	CatalogSlotMode     string // "flagged" or "prefiltered"
	FetchTimeout        time.Duration
	SubmitURL           string
	DemoCatalog         bool

	// Catalog cache
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	CatalogCacheTTL time.Duration

	// Form host
	SessionIdleTimeout time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
	PatientJWTSecret   string

	// RequirePatientLogin refuses submissions from forms opened without a patient token.
	RequirePatientLogin bool
	MetricsToken        string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "UTC"),

		CatalogBaseURL:      getEnv("CATALOG_BASE_URL", "http://localhost:8081"),
		CatalogProviderMode: strings.ToLower(strings.TrimSpace(getEnv("CATALOG_PROVIDER_MODE", "filtered"))),
		CatalogSlotMode:     strings.ToLower(strings.TrimSpace(getEnv("CATALOG_SLOT_MODE", "flagged"))),
		FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
		SubmitURL:           getEnv("SUBMIT_URL", ""),
		DemoCatalog:         getEnvAsBool("DEMO_CATALOG", false),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		PatientJWTSecret:   getEnv("PATIENT_JWT_SECRET", ""),

		RequirePatientLogin: getEnvAsBool("REQUIRE_PATIENT_LOGIN", false),
		MetricsToken:        getEnv("METRICS_TOKEN", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
