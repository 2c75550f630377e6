package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"service-marketplace-server/models"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Settlement SettlementConfig
	Jobs       JobsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	SeedCatalog    bool
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL          string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// RedisConfig controls the catalog cache. An empty URL disables caching.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

type SettlementConfig struct {
	// AutoMethod settles a request on completion when the customer has no
	// preferred payment method. Empty leaves settlement to the customer.
	AutoMethod  string
	MaxAttempts int
}

type JobsConfig struct {
	CompletionRecountInterval time.Duration
}

type LogConfig struct {
	Level string
}

var AppConfig *Config

func Load() *Config {
	AppConfig = &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			SeedCatalog:    getEnvAsBool("SEED_CATALOG", false),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8081"}),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DB_URL", ""),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: time.Duration(getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Settlement: SettlementConfig{
			AutoMethod:  strings.ToLower(getEnv("SETTLEMENT_AUTO_METHOD", "")),
			MaxAttempts: getEnvAsInt("SETTLEMENT_MAX_ATTEMPTS", 5),
		},
		Jobs: JobsConfig{
			CompletionRecountInterval: time.Duration(getEnvAsInt("COMPLETION_RECOUNT_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	return AppConfig
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive, got %d", c.JWT.ExpiryHours)
	}
	if c.Settlement.MaxAttempts <= 0 {
		return fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be positive, got %d", c.Settlement.MaxAttempts)
	}
	if m := c.Settlement.AutoMethod; m != "" {
		if !models.PaymentMethod(m).Valid() {
			return fmt.Errorf("SETTLEMENT_AUTO_METHOD %q is not a known payment method", m)
		}
	}
	if c.Jobs.CompletionRecountInterval <= 0 {
		return fmt.Errorf("COMPLETION_RECOUNT_INTERVAL_MINUTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
