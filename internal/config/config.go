// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	GeminiAPIKey string
	GeminiModel  string
	// IllustrationModel is the image-capable Gemini model used for manual
	// illustrations.
	IllustrationModel string

	GoogleAPIKey   string
	GoogleSearchCX string

	GCSBucket string
	// OCROutputPrefix is the object prefix async document OCR writes its
	// JSON results under.
	OCROutputPrefix string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/sessions.db"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		IllustrationModel: getEnv("ILLUSTRATION_MODEL", "gemini-2.5-flash-image"),
		GoogleAPIKey:      getEnv("GOOGLE_API_KEY", ""),
		GoogleSearchCX:    getEnv("GOOGLE_SEARCH_CX", ""),
		GCSBucket:         getEnv("GCS_BUCKET", ""),
		OCROutputPrefix:   getEnv("GCS_OUTPUT_PREFIX", "vision-output/"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// External API keys are validated lazily by the services that need them so
// the server can still boot for local development without credentials.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.IllustrationModel == "" {
		return fmt.Errorf("ILLUSTRATION_MODEL cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
