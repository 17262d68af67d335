package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
// Values come from environment variables; a .env file is loaded when present.
type Config struct {
	// GCPProjectID is the project that owns the BigQuery dataset.
	GCPProjectID string

	// Dataset is the BigQuery dataset holding statements, transactions and
	// the insights cache.
	Dataset string

	// Bucket is the GCS bucket for uploaded statement documents.
	Bucket string

	// ModelName is the Gemini model used for extraction and insights.
	ModelName string

	// ExtractionTimeout bounds each external inference call.
	ExtractionTimeout time.Duration

	// InsightsTTL is the validity window of a generated insights cache row.
	InsightsTTL time.Duration

	// CurrencyFilenameOverride toggles the filename-based JPY override.
	CurrencyFilenameOverride bool

	// NotionToken and NotionDatabaseID configure the optional Notion export.
	NotionToken      string
	NotionDatabaseID string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()

	cfg := &Config{
		GCPProjectID:             os.Getenv("GCP_PROJECT_ID"),
		Dataset:                  getEnvOrDefault("BQ_DATASET", "finance"),
		Bucket:                   os.Getenv("GCS_BUCKET"),
		ModelName:                getEnvOrDefault("MODEL_NAME", "gemini-2.5-flash"),
		ExtractionTimeout:        getDurationOrDefault("EXTRACTION_TIMEOUT", 2*time.Minute),
		InsightsTTL:              getDurationOrDefault("INSIGHTS_TTL", 24*time.Hour),
		CurrencyFilenameOverride: getBoolOrDefault("CURRENCY_FILENAME_OVERRIDE", true),
		NotionToken:              os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID:         os.Getenv("NOTION_DATABASE_ID"),
	}

	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("config: GCP_PROJECT_ID is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
