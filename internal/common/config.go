package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM     LLMConfig
	Batch   BatchConfig
	Audit   AuditConfig
	Preproc PreprocConfig
}

// LLMConfig holds model-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
}

// BatchConfig holds batch execution configuration
type BatchConfig struct {
	Concurrency  int
	PercentScale string
}

// AuditConfig holds audit log configuration
type AuditConfig struct {
	DBPath         string
	RedactPatterns []string
}

// PreprocConfig holds document preprocessing configuration
type PreprocConfig struct {
	ArtifactCacheDir string
	MaxPages         int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			MaxAttempts: getEnvAsInt("LLM_MAX_ATTEMPTS", 4),
		},
		Batch: BatchConfig{
			Concurrency:  getEnvAsInt("BATCH_CONCURRENCY", 4),
			PercentScale: getEnv("PERCENT_SCALE", "0-1"),
		},
		Audit: AuditConfig{
			DBPath:         getEnv("AUDIT_DB_PATH", ""),
			RedactPatterns: splitCSV(getEnv("AUDIT_REDACT_PATTERNS", "")),
		},
		Preproc: PreprocConfig{
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", ""),
			MaxPages:         getEnvAsInt("PREPROC_MAX_PAGES", 0),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Batch.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if s := c.Batch.PercentScale; s != "0-1" && s != "0-100" {
		return NewAppError("CONFIG_ERROR", "PERCENT_SCALE must be '0-1' or '0-100'", ErrInvalidInput)
	}
	return nil
}
