package config

import (
	"os"
	"strconv"
)

// EnvConfig collects the environment toggles the core consumes directly.
type EnvConfig struct {
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string

	RedisAddr     string
	RedisPassword string

	// ChatEnabled turns the whole chat capability on or off.
	ChatEnabled bool
	// ReconcileDryRun forces the reconciler to log intended upserts
	// without writing. Useful for staging.
	ReconcileDryRun bool
}

func LoadEnvConfig() *EnvConfig {
	return &EnvConfig{
		PostgresUser:     GetEnv("POSTGRES_USER", "atmo"),
		PostgresPassword: GetEnv("POSTGRES_PASSWORD", "atmo123"),
		PostgresDB:       GetEnv("POSTGRES_DB", "atmo"),
		PostgresHost:     GetEnv("POSTGRES_HOST", "localhost:5432"),

		RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),

		ChatEnabled:     GetEnvBool("ATMO_CHAT_ENABLED", true),
		ReconcileDryRun: GetEnvBool("ATMO_RECONCILE_DRY_RUN", false),
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
