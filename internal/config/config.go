package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the cart engine.
// Following 12-factor app principles, all config is loaded from environment variables
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Lock    LockConfig
	Cart    CartConfig
	Catalog CatalogConfig

	KafkaBrokers []string
	LogLevel     string
}

type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type StorageConfig struct {
	Backend       string // mongo or memory
	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPassword string
}

type LockConfig struct {
	Backend string // memory or redis
	TTL     time.Duration
}

type CartConfig struct {
	AllowOutOfStockOrders bool
	MaxLineQuantity       int
}

type CatalogConfig struct {
	DBPath          string
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("HTTP_PORT", "8080"),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORE_BACKEND", "mongo"),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
		},
		Lock: LockConfig{
			Backend: getEnv("LOCK_BACKEND", "memory"),
			TTL:     getEnvAsDuration("LOCK_TTL", 5*time.Second),
		},
		Cart: CartConfig{
			AllowOutOfStockOrders: getEnvAsBool("ALLOW_OUT_OF_STOCK_ORDERS", false),
			MaxLineQuantity:       getEnvAsInt("MAX_LINE_QUANTITY", 0),
		},
		Catalog: CatalogConfig{
			DBPath:          getEnv("CATALOG_DB_PATH", "catalog.db"),
			BreakerFailures: getEnvAsInt("CATALOG_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvAsDuration("CATALOG_BREAKER_TIMEOUT", 30*time.Second),
		},
		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.Storage.Backend {
	case "memory":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %s (must be mongo or memory)", c.Storage.Backend)
	}

	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis lock")
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("LOCK_TTL must be positive")
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND: %s (must be memory or redis)", c.Lock.Backend)
	}

	if c.Cart.MaxLineQuantity < 0 {
		return fmt.Errorf("MAX_LINE_QUANTITY must not be negative")
	}
	if c.Catalog.DBPath == "" {
		return fmt.Errorf("CATALOG_DB_PATH is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
