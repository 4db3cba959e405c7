package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	DelayExchange   string
	MaxPriority     int

	StoreTimezone   string
	CutoffHour      int
	OrderMinimum    decimal.Decimal
	DiscountRate    decimal.Decimal
	IdempotencyTTL  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultDBPort returns the standard port of the given driver.
func DefaultDBPort(driver string) string {
	if driver == "postgres" {
		return "5432"
	}
	return "3306"
}

func LoadConfig() *Config {
	driver := getEnv("DB_DRIVER", "mysql")
	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:   driver,
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", DefaultDBPort(driver)),
		DBName:     getEnv("DB_NAME", "distribuidora"),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "pedidos_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "pedidos_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "pedidos_dead_letter"),
		DelayExchange:   getEnv("DELAY_EXCHANGE", "pedidos_delay"),
		MaxPriority:     getEnvInt("MAX_PRIORITY", 10),

		StoreTimezone:   getEnv("STORE_TIMEZONE", "America/Argentina/Buenos_Aires"),
		CutoffHour:      getEnvInt("CHECKOUT_CUTOFF_HOUR", 15),
		OrderMinimum:    getEnvDecimal("ORDER_MINIMUM", decimal.NewFromInt(20000)),
		DiscountRate:    getEnvDecimal("DISCOUNT_RATE", decimal.RequireFromString("0.12")),
		IdempotencyTTL:  getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Production reports whether the service runs with release settings.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Location loads the store timezone, falling back to UTC when the zone
// database does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StoreTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
