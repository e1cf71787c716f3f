// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string

	// Storage (all optional; the pipeline runs fully in-memory without them)
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	EmbeddingModel string
	LLMTimeoutSec  int

	// Pipeline
	RelevanceThreshold float64
	TypeThreshold      float64
	DedupThreshold     float64
	MaxBatchSize       int
	BatchWorkers       int
	StageTimeoutSec    int
	SerializeInference bool
	TaxonomyPath       string

	// Geocoding
	GeocodeCacheSize  int
	GeocodeBaseURL    string
	GeocodeUserAgent  string
	GeocodeRatePerSec float64
	GeocodeTimeoutSec int

	// HTTP
	AllowedOrigins string

	// Auth
	AdminJWTSecret string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_NAME", "crisislens"),
		RedisURL:    getEnv("REDIS_URL", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 120),

		RelevanceThreshold: getEnvFloat("RELEVANCE_THRESHOLD", 0.65),
		TypeThreshold:      getEnvFloat("TYPE_THRESHOLD", 0.40),
		DedupThreshold:     getEnvFloat("DEDUP_THRESHOLD", 0.85),
		MaxBatchSize:       getEnvInt("MAX_BATCH_SIZE", 100),
		BatchWorkers:       getEnvInt("BATCH_WORKERS", 8),
		StageTimeoutSec:    getEnvInt("STAGE_TIMEOUT_SEC", 30),
		SerializeInference: getEnvBool("SERIALIZE_INFERENCE", false),
		TaxonomyPath:       getEnv("TAXONOMY_PATH", ""),

		GeocodeCacheSize:  getEnvInt("GEOCODE_CACHE_SIZE", 2000),
		GeocodeBaseURL:    getEnv("GEOCODE_BASE_URL", ""),
		GeocodeUserAgent:  getEnv("GEOCODE_USER_AGENT", "crisislens/1.0"),
		GeocodeRatePerSec: getEnvFloat("GEOCODE_RATE_PER_SEC", 1.0),
		GeocodeTimeoutSec: getEnvInt("GEOCODE_TIMEOUT_SEC", 10),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be positive")
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
