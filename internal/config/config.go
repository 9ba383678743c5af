package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL string // Consolidated DB Connection URL
	RedisURL    string

	MOPSBaseURL string // override for tests, "" means production
	TaxonomyDir string
	RateLimit   float64 // requests per second against MOPS

	Port string
}

// LoadConfig reads configuration from environment variables (.env file)
func LoadConfig() (*Config, error) {
	// Load .env file. In production, env variables are often set directly.
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env is not present, just log it
		// log.Printf("Warning: .env file not found, reading from environment")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MOPSBaseURL: getEnv("MOPS_BASE_URL", ""),
		TaxonomyDir: getEnv("TAXONOMY_DIR", "taxonomy"),
		RateLimit:   getEnvFloat("RATE_LIMIT", 1.0),
		Port:        getEnv("PORT", "8080"),
	}, nil
}

// Helper function to get env var or return default
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
