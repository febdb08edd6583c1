package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SETTLEMENT_API_ENDPOINT", "http://settlement:8080")
	t.Setenv("STORAGE_GATEWAY_ENDPOINT", "http://gateway:9090")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Settlement.WaitTimeout != 90*time.Second {
		t.Errorf("unexpected default wait timeout: %s", cfg.Settlement.WaitTimeout)
	}
	if cfg.Settlement.AcceptExecuted {
		t.Error("executed-only settlement must not be accepted by default")
	}
	if !cfg.Settlement.RequireTransfer {
		t.Error("transfer gating should be required by default")
	}
	if cfg.Storage.MaxBlobBytes != 32<<20 {
		t.Errorf("unexpected default blob bound: %d", cfg.Storage.MaxBlobBytes)
	}
	if !cfg.Reconciler.Enabled {
		t.Error("reconciler should be enabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SETTLEMENT_WAIT_TIMEOUT", "45s")
	t.Setenv("SETTLEMENT_ACCEPT_EXECUTED", "true")
	t.Setenv("STORAGE_MAX_BLOB_BYTES", "1048576")
	t.Setenv("RECONCILER_MAX_ATTEMPTS", "2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Settlement.WaitTimeout != 45*time.Second {
		t.Errorf("unexpected wait timeout: %s", cfg.Settlement.WaitTimeout)
	}
	if !cfg.Settlement.AcceptExecuted {
		t.Error("accept-executed override not applied")
	}
	if cfg.Storage.MaxBlobBytes != 1<<20 {
		t.Errorf("unexpected blob bound: %d", cfg.Storage.MaxBlobBytes)
	}
	if cfg.Reconciler.MaxAttempts != 2 {
		t.Errorf("unexpected max attempts: %d", cfg.Reconciler.MaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{
			name:    "missing settlement endpoint",
			mutate:  func(c *Config) { c.Settlement.APIEndpoint = "" },
			wantErr: true,
		},
		{
			name:    "missing gateway endpoint",
			mutate:  func(c *Config) { c.Storage.GatewayEndpoint = "" },
			wantErr: true,
		},
		{
			name:    "malformed deposit address",
			mutate:  func(c *Config) { c.Settlement.DepositAddress = "not-an-address" },
			wantErr: true,
		},
		{
			name: "valid deposit address",
			mutate: func(c *Config) {
				c.Settlement.DepositAddress = "0x1111111111111111111111111111111111111111"
			},
			wantErr: false,
		},
		{
			name:    "non-positive wait timeout",
			mutate:  func(c *Config) { c.Settlement.WaitTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive blob bound",
			mutate:  func(c *Config) { c.Storage.MaxBlobBytes = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Host: "localhost"},
				Settlement: SettlementConfig{
					APIEndpoint:  "http://settlement:8080",
					WaitTimeout:  time.Minute,
					PollInterval: time.Second,
				},
				Storage: StorageConfig{
					GatewayEndpoint: "http://gateway:9090",
					MaxBlobBytes:    1 << 20,
				},
				Reconciler: ReconcilerConfig{Enabled: true, Interval: time.Minute},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
