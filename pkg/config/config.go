// Package config loads server configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string
	RedisAddr      string // empty disables the distributed cool-down guard
	RedisPassword  string
	JudgeURL       string
	JudgeAPIKey    string
	JudgeModel     string
	JudgeTimeout   time.Duration
	AuthSecret     string
	RubricProfile  string // optional YAML profile path; empty uses defaults
	Cooldown       time.Duration
	BatchSize      int
	OTLPEndpoint   string
	OTelEnabled    bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getenv("PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "INFO"),
		DatabaseDriver: getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getenv("DATABASE_URL", "verdant.db"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		JudgeURL:       getenv("JUDGE_URL", "https://api.openai.com/v1/chat/completions"),
		JudgeAPIKey:    os.Getenv("JUDGE_API_KEY"),
		JudgeModel:     getenv("JUDGE_MODEL", "gpt-4o-mini"),
		JudgeTimeout:   getenvDuration("JUDGE_TIMEOUT", 90*time.Second),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		RubricProfile:  os.Getenv("RUBRIC_PROFILE"),
		Cooldown:       getenvDuration("EVAL_COOLDOWN", 10*time.Minute),
		BatchSize:      getenvInt("BATCH_SIZE", 5),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:    os.Getenv("OTEL_ENABLED") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
