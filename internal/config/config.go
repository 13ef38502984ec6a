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

	DatabaseURL string

	// Webhook verification. WebhookSecret doubles as the hub.verify_token
	// value for the GET handshake and as the HMAC-SHA256 key for POST
	// deliveries.
	WebhookSecret   string
	ProductionPhone string

	// Tenant routing. TenantsJSON is a JSON array of tenant configs and
	// takes precedence over the single-tenant triple below.
	TenantsJSON       string
	DefaultEmpresaID  string
	DefaultPipelineID string
	DefaultEtapaID    string

	// Object storage for relocated media.
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	MediaBucket         string
	MediaPublicBaseURL  string

	// Redis seen-cache for message deduplication.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupCacheTTL time.Duration

	// External chat-profile lookup API.
	ChatAPIBaseURL  string
	ChatAPIClientID string
	ChatAPIToken    string

	// Owner notification email (optional, SES).
	NotifyFromEmail string
	NotifyFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		ProductionPhone: strings.TrimSpace(getEnv("PRODUCTION_PHONE_NUMBER", "")),

		TenantsJSON:       getEnv("WEBHOOK_TENANTS_JSON", ""),
		DefaultEmpresaID:  getEnv("DEFAULT_EMPRESA_ID", ""),
		DefaultPipelineID: getEnv("DEFAULT_PIPELINE_ID", ""),
		DefaultEtapaID:    getEnv("DEFAULT_ETAPA_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		MediaBucket:         getEnv("MEDIA_BUCKET", "crm-media"),
		MediaPublicBaseURL:  strings.TrimRight(getEnv("MEDIA_PUBLIC_BASE_URL", ""), "/"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupCacheTTL: getEnvAsDuration("DEDUP_CACHE_TTL", 24*time.Hour),

		ChatAPIBaseURL:  strings.TrimRight(getEnv("CHAT_API_BASE_URL", ""), "/"),
		ChatAPIClientID: getEnv("CHAT_API_CLIENT_ID", ""),
		ChatAPIToken:    getEnv("CHAT_API_TOKEN", ""),

		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Ventia CRM"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
