// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the binaries need to talk to their external
// collaborators. The Gemini API key is intentionally absent: the genai SDK
// reads GEMINI_API_KEY itself.
type Config struct {
	DatabaseURL string

	Port string

	ResendAPIKey string
	EmailFrom    string

	// GCSBucket enables best-effort archival of scanned receipt images
	// when non-empty.
	GCSBucket string

	// NotionToken / NotionTransactionsDB enable the Notion export.
	NotionToken          string
	NotionTransactionsDB string

	// JobWorkers is the number of concurrent queue workers.
	JobWorkers int
}

// Load reads the configuration from the environment. Only DATABASE_URL is
// mandatory; everything else has a default or disables its feature.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Port:                 getenvDefault("PORT", "8080"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		EmailFrom:            getenvDefault("EMAIL_FROM", "Pennyworth <reports@pennyworth.app>"),
		GCSBucket:            os.Getenv("GCS_BUCKET"),
		NotionToken:          os.Getenv("NOTION_TOKEN"),
		NotionTransactionsDB: os.Getenv("NOTION_TRANSACTIONS_DB"),
		JobWorkers:           5,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	if raw := os.Getenv("JOB_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("config: invalid JOB_WORKERS %q", raw)
		}
		cfg.JobWorkers = n
	}

	return cfg, nil
}

// MustLoad is Load for main functions.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
