// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the ledger database (always absolute)
	LogLevel  string
	Port      int
	DevMode   bool
	LogPretty bool
	Trading   *TradingConfig
	Schedules *ScheduleConfig
	Backup    *BackupConfig
}

// TradingConfig holds the risk and accounting parameters of the ledger.
// Monetary values are decimals so they flow into the ledger without a float
// conversion step.
type TradingConfig struct {
	InitialCapital    decimal.Decimal
	FeeRate           decimal.Decimal // taken on notional, per leg
	MaxPositionRatio  decimal.Decimal // fraction of capital a single open may consume
	MinCapital        decimal.Decimal
	MinTradeAmount    decimal.Decimal
	MaxDailyLossRatio decimal.Decimal
	MaxOpenPositions  int
	SnapshotRetention int
}

// ScheduleConfig holds cron expressions for the background jobs
type ScheduleConfig struct {
	Snapshot      string
	Retention     string
	WALCheckpoint string
	Backup        string
}

// BackupConfig holds off-site backup settings. An empty S3Bucket disables
// uploads; local archives are still written when Dir is set.
type BackupConfig struct {
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Prefix    string
	S3Endpoint  string // optional, for S3-compatible providers (MinIO, R2)
	S3AccessKey string // optional, empty falls back to the ambient AWS credential chain
	S3SecretKey string
}

// Enabled reports whether any backup work is configured
func (b *BackupConfig) Enabled() bool {
	return b.Dir != "" || b.S3Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LEDGER_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("PORT", 8080),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Trading: &TradingConfig{
			InitialCapital:    getEnvAsDecimal("INITIAL_CAPITAL", "1.0"),
			FeeRate:           getEnvAsDecimal("FEE_RATE", "0.001"),
			MaxPositionRatio:  getEnvAsDecimal("MAX_POSITION_RATIO", "0.25"),
			MinCapital:        getEnvAsDecimal("MIN_CAPITAL", "1.0"),
			MinTradeAmount:    getEnvAsDecimal("MIN_TRADE_AMOUNT", "0.10"),
			MaxDailyLossRatio: getEnvAsDecimal("MAX_DAILY_LOSS_RATIO", "0.05"),
			MaxOpenPositions:  getEnvAsInt("MAX_OPEN_POSITIONS", 5),
			SnapshotRetention: getEnvAsInt("SNAPSHOT_RETENTION", 1000),
		},
		Schedules: &ScheduleConfig{
			Snapshot:      getEnv("SNAPSHOT_SCHEDULE", "@every 1m"),
			Retention:     getEnv("RETENTION_SCHEDULE", "@hourly"),
			WALCheckpoint: getEnv("WAL_CHECKPOINT_SCHEDULE", "@every 6h"),
			Backup:        getEnv("BACKUP_SCHEDULE", "@daily"),
		},
		Backup: &BackupConfig{
			Dir:         getEnv("BACKUP_DIR", ""),
			S3Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			S3Region:    getEnv("BACKUP_S3_REGION", "eu-central-1"),
			S3Prefix:    getEnv("BACKUP_S3_PREFIX", "papertrader/backups"),
			S3Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			S3AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	t := c.Trading
	if !t.InitialCapital.IsPositive() {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %s", t.InitialCapital)
	}
	if t.FeeRate.IsNegative() {
		return fmt.Errorf("FEE_RATE must not be negative, got %s", t.FeeRate)
	}
	if !t.MaxPositionRatio.IsPositive() || t.MaxPositionRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_POSITION_RATIO must be in (0, 1], got %s", t.MaxPositionRatio)
	}
	if t.MaxOpenPositions < 1 {
		return fmt.Errorf("MAX_OPEN_POSITIONS must be at least 1, got %d", t.MaxOpenPositions)
	}
	if t.SnapshotRetention < 1 {
		return fmt.Errorf("SNAPSHOT_RETENTION must be at least 1, got %d", t.SnapshotRetention)
	}
	return nil
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

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
