package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file if present. Missing files are not an error;
// production deployments configure through the environment directly.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage
	DBPath       string
	TemplatesDir string

	// Resilience
	HTTPTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Telegram
	TelegramAPIURL string

	// Reminders
	AMQPUrl            string
	AMQPExchange       string
	AMQPQueue          string
	ReminderInterval   time.Duration
	ReminderWindowDays int

	// JWT / Auth. Empty secret disables authentication entirely, which is
	// the expected mode for a localhost-only deployment.
	JWTSecret    string
	JWTAccessTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath:       getEnv("DB_PATH", "data/contabile.db"),
		TemplatesDir: getEnv("TEMPLATES_DIR", "data/templates"),

		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		TelegramAPIURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),

		AMQPUrl:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "contabile.reminders"),
		AMQPQueue:          getEnv("AMQP_QUEUE", "reminders"),
		ReminderInterval:   getEnvDuration("REMINDER_INTERVAL", 12*time.Hour),
		ReminderWindowDays: getEnvInt("REMINDER_WINDOW_DAYS", 7),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
