package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Settlement SettlementConfig
	Storage    StorageConfig
	Reconciler ReconcilerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SettlementConfig holds configuration for the external settlement system
type SettlementConfig struct {
	APIEndpoint     string        // Settlement status API base URL
	DepositAddress  string        // Expected recipient of gating transfers (hex address, optional)
	WaitTimeout     time.Duration // Max time one ingestion blocks on settlement
	PollInterval    time.Duration // Status poll cadence
	AcceptExecuted  bool          // Treat executed-without-fulfilled as sufficient proof
	RequireTransfer bool          // Reject ingestions that carry no transfer reference
}

// StorageConfig holds configuration for the external storage network gateway
type StorageConfig struct {
	GatewayEndpoint string
	MaxBlobBytes    int64         // Declared size bound of the storage network
	RequestTimeout  time.Duration // Applied around put/get calls
	VerifyOnRead    bool          // Re-hash retrieved content against the recorded hash
}

// ReconcilerConfig holds configuration for the pending-record reconciler
type ReconcilerConfig struct {
	Enabled     bool
	Interval    time.Duration
	GracePeriod time.Duration // Pending records younger than this are left alone
	MaxAttempts int           // Attempts before a pending record is marked failed
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "storagebridge"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Settlement: SettlementConfig{
			APIEndpoint:     getEnv("SETTLEMENT_API_ENDPOINT", ""),
			DepositAddress:  getEnv("SETTLEMENT_DEPOSIT_ADDRESS", ""),
			WaitTimeout:     getEnvDuration("SETTLEMENT_WAIT_TIMEOUT", 90*time.Second),
			PollInterval:    getEnvDuration("SETTLEMENT_POLL_INTERVAL", 3*time.Second),
			AcceptExecuted:  getEnvBool("SETTLEMENT_ACCEPT_EXECUTED", false),
			RequireTransfer: getEnvBool("SETTLEMENT_REQUIRE_TRANSFER", true),
		},
		Storage: StorageConfig{
			GatewayEndpoint: getEnv("STORAGE_GATEWAY_ENDPOINT", ""),
			MaxBlobBytes:    getEnvInt64("STORAGE_MAX_BLOB_BYTES", 32<<20),
			RequestTimeout:  getEnvDuration("STORAGE_REQUEST_TIMEOUT", 60*time.Second),
			VerifyOnRead:    getEnvBool("STORAGE_VERIFY_ON_READ", false),
		},
		Reconciler: ReconcilerConfig{
			Enabled:     getEnvBool("RECONCILER_ENABLED", true),
			Interval:    getEnvDuration("RECONCILER_INTERVAL", 60*time.Second),
			GracePeriod: getEnvDuration("RECONCILER_GRACE_PERIOD", 10*time.Minute),
			MaxAttempts: getEnvInt("RECONCILER_MAX_ATTEMPTS", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Settlement.APIEndpoint == "" {
		return fmt.Errorf("SETTLEMENT_API_ENDPOINT is required")
	}

	if c.Settlement.DepositAddress != "" && !common.IsHexAddress(c.Settlement.DepositAddress) {
		return fmt.Errorf("invalid settlement deposit address: %s", c.Settlement.DepositAddress)
	}

	if c.Settlement.WaitTimeout <= 0 {
		return fmt.Errorf("settlement wait timeout must be positive")
	}

	if c.Settlement.PollInterval <= 0 {
		return fmt.Errorf("settlement poll interval must be positive")
	}

	if c.Storage.GatewayEndpoint == "" {
		return fmt.Errorf("STORAGE_GATEWAY_ENDPOINT is required")
	}

	if c.Storage.MaxBlobBytes <= 0 {
		return fmt.Errorf("max blob size must be positive")
	}

	if c.Reconciler.Enabled && c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler interval must be positive")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
