package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Durable document store ("memory", "redis", "s3", "gist").
	StoreBackend   string
	StoreKeyPrefix string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	S3Bucket       string
	GistID         string
	GistToken      string
	GistBaseURL    string

	// Inbound event queue ("memory" or "sqs").
	QueueBackend         string
	ConversationQueueURL string
	LaneCount            int

	// Conversation timing.
	InactivityTimeout   time.Duration
	StaleEventThreshold time.Duration
	SessionTTL          time.Duration
	FeedbackWindow      time.Duration
	SubmissionGrace     time.Duration

	LanguageSelection   bool
	DefaultLanguage     string
	RequirePaymentProof bool
	PersistSessions     bool

	// Messaging gateway.
	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayWebhookSecret string
	GatewayMaxRetries    int
	DedupeTTL            time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	DatabaseURL  string
	ReviewsTable string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Operator alerts
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	OperatorEmails    []string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreBackend:   strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		StoreKeyPrefix: getEnv("STORE_KEY_PREFIX", "coffee:doc:"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		GistID:         getEnv("GIST_ID", ""),
		GistToken:      getEnv("GIST_TOKEN", ""),
		GistBaseURL:    getEnv("GIST_BASE_URL", "https://api.github.com"),

		QueueBackend:         strings.ToLower(strings.TrimSpace(getEnv("QUEUE_BACKEND", "memory"))),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		LaneCount:            getEnvAsInt("LANE_COUNT", 16),

		InactivityTimeout:   getEnvAsDuration("INACTIVITY_TIMEOUT", 5*time.Minute),
		StaleEventThreshold: getEnvAsDuration("STALE_EVENT_THRESHOLD", 15*time.Minute),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		FeedbackWindow:      getEnvAsDuration("FEEDBACK_WINDOW", 10*time.Minute),
		SubmissionGrace:     getEnvAsDuration("SUBMISSION_GRACE", 2*time.Minute),

		LanguageSelection:   getEnvAsBool("LANGUAGE_SELECTION", false),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "ar"),
		RequirePaymentProof: getEnvAsBool("REQUIRE_PAYMENT_PROOF", true),
		PersistSessions:     getEnvAsBool("PERSIST_SESSIONS", false),

		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		GatewayMaxRetries:    getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
		DedupeTTL:            getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		ReviewsTable: getEnv("REVIEWS_TABLE", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Coffee Orders"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		OperatorEmails:    getEnvAsList("OPERATOR_EMAILS", nil),
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

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
