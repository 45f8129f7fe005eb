// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and backups (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Market data
	QuoteProviderURL string // Base URL of the quote provider API
	QuoteCacheTTL    int    // Quote cache TTL in seconds
	PriceSyncSpec    string // Cron spec for the price sync job
	TopStocksSpec    string // Cron spec for the top-stocks refresh job
	TopStocksLimit   int    // Size of the rolling top-stocks window

	// Snapshots
	SnapshotSpec string // Cron spec for daily snapshot capture

	// Backups
	BackupSpec      string // Cron spec for the nightly backup job
	BackupRetention int    // Days to keep local backups (a minimum of 3 always survives)
	BackupS3Bucket  string // Optional S3 bucket for offsite copies (empty = disabled)
	BackupS3Region  string
	BackupS3Prefix  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, resolve to absolute path and ensure it exists
	dataDir := getEnv("FOLIO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		QuoteProviderURL: getEnv("QUOTE_PROVIDER_URL", "https://query1.finance.yahoo.com"),
		QuoteCacheTTL:    getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 300),
		PriceSyncSpec:    getEnv("PRICE_SYNC_SPEC", "@every 15m"),
		TopStocksSpec:    getEnv("TOP_STOCKS_SPEC", "@every 1h"),
		TopStocksLimit:   getEnvAsInt("TOP_STOCKS_LIMIT", 20),

		SnapshotSpec: getEnv("SNAPSHOT_SPEC", "0 0 * * *"),

		BackupSpec:      getEnv("BACKUP_SPEC", "30 2 * * *"),
		BackupRetention: getEnvAsInt("BACKUP_RETENTION", 7),
		BackupS3Bucket:  getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Region:  getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupS3Prefix:  getEnv("BACKUP_S3_PREFIX", "folio"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.QuoteCacheTTL <= 0 {
		return fmt.Errorf("quote cache TTL must be positive, got %d", c.QuoteCacheTTL)
	}
	if c.BackupRetention < 1 {
		return fmt.Errorf("backup retention must be at least 1, got %d", c.BackupRetention)
	}
	return nil
}

// PortfolioDBPath returns the path of the main portfolio database
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// CacheDBPath returns the path of the ephemeral cache database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// BackupDir returns the directory local backups are written to
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
