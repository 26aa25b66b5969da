package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port          string
	DatabaseURL   string
	Version       string
	LogLevel      string
	LogBufferSize int // Entries retained for GET /api/admin/logs

	// LLM providers: Anthropic is primary, OpenAI is the fallback
	AnthropicKey         string
	AnthropicModel       string
	OpenAIKey            string
	OpenAIModel          string
	LLMTimeout           int // Per-batch LLM timeout in seconds
	LLMRequestsPerMinute int

	// Pipeline batch sizes
	ClassifyBatchSize int
	DraftBatchSize    int
	InsertBatchSize   int
	AutoClassify      bool // Chain classification and grouping after an upload

	// Operator login
	JWTSecret     string
	TokenTTLHours int
	AdminUsername string
	AdminPassword string

	// Outbound mail
	MailTransport      string // gmail or sendgrid
	SendGridAPIKey     string
	SupportEmail       string
	GoogleClientID     string
	GoogleClientSecret string
	GmailAPIBase       string

	// Commerce collaborators
	ShopifyStoreURL      string
	ShopifyAccessToken   string
	ShopifyAPIVersion    string
	ShipStationAPIKey    string
	ShipStationAPISecret string
	ShipStationBaseURL   string
	OrderCacheTTL        int // Minutes
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Version:       getEnv("VERSION", "1.0.0"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogBufferSize: getEnvInt("LOG_BUFFER_SIZE", 1000),

		AnthropicKey:         getEnv("ANTHROPIC_API_KEY", os.Getenv("CLAUDE_API_KEY")),
		AnthropicModel:       getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:           getEnvInt("LLM_TIMEOUT", 60),
		LLMRequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 50),

		ClassifyBatchSize: getEnvInt("CLASSIFY_BATCH_SIZE", 15),
		DraftBatchSize:    getEnvInt("DRAFT_BATCH_SIZE", 5),
		InsertBatchSize:   getEnvInt("INSERT_BATCH_SIZE", 50),
		AutoClassify:      getEnvBool("AUTO_CLASSIFY", false),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 24),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		MailTransport:      getEnv("MAIL_TRANSPORT", "gmail"),
		SendGridAPIKey:     os.Getenv("SENDGRID_API_KEY"),
		SupportEmail:       getEnv("SUPPORT_EMAIL", "support@example.com"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GmailAPIBase:       getEnv("GMAIL_API_BASE", "https://gmail.googleapis.com"),

		ShopifyStoreURL:      os.Getenv("SHOPIFY_STORE_URL"),
		ShopifyAccessToken:   os.Getenv("SHOPIFY_ACCESS_TOKEN"),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2024-10"),
		ShipStationAPIKey:    os.Getenv("SHIPSTATION_API_KEY"),
		ShipStationAPISecret: os.Getenv("SHIPSTATION_API_SECRET"),
		ShipStationBaseURL:   getEnv("SHIPSTATION_BASE_URL", "https://ssapi.shipstation.com"),
		OrderCacheTTL:        getEnvInt("ORDER_CACHE_TTL", 5),
	}

	return config
}

// HasAnthropic reports whether the primary LLM provider is configured
func (c *Config) HasAnthropic() bool {
	return c.AnthropicKey != ""
}

// HasOpenAIFallback reports whether the OpenAI fallback provider is configured
func (c *Config) HasOpenAIFallback() bool {
	return c.OpenAIKey != ""
}

// LLMTimeoutDuration returns the per-batch LLM timeout
func (c *Config) LLMTimeoutDuration() time.Duration {
	return time.Duration(c.LLMTimeout) * time.Second
}

// OrderCacheTTLDuration returns how long order snapshots stay cached
func (c *Config) OrderCacheTTLDuration() time.Duration {
	return time.Duration(c.OrderCacheTTL) * time.Minute
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output. Extra writers (such as the
// in-memory log buffer) receive every line written to stdout.
func (c *Config) SetupLogger(extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	if len(extra) > 0 {
		writers := append([]io.Writer{os.Stdout}, extra...)
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", "responder").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
