package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SMARTTHINGS_CLIENT_ID", "client-from-env")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Listen != ":10000" {
		t.Errorf("unexpected listen address %q", cfg.Listen)
	}
	if cfg.Scheduler.CheckInLead != 2*time.Hour || cfg.Scheduler.CheckOutLag != time.Hour {
		t.Errorf("unexpected scheduler windows: %+v", cfg.Scheduler)
	}
	if cfg.SmartThings.RefreshInterval != 12*time.Hour {
		t.Errorf("unexpected refresh interval %s", cfg.SmartThings.RefreshInterval)
	}
	if cfg.SmartThings.ClientID != "client-from-env" {
		t.Errorf("environment override not applied: %q", cfg.SmartThings.ClientID)
	}
	if len(cfg.SmartThings.Keywords) == 0 {
		t.Errorf("expected default keywords")
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
listen: ":8080"
power:
  noise_window: 30s
  noise_store: memory
storage:
  type: sqlite
  sqlite:
    path: /tmp/smart-stay-test.db
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Power.NoiseWindow != 30*time.Second {
		t.Errorf("file values not applied: listen %q window %s", cfg.Listen, cfg.Power.NoiseWindow)
	}
	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/tmp/smart-stay-test.db" {
		t.Errorf("absolute sqlite path must be kept: %+v", cfg.Storage.SQLite)
	}
}

func TestLoadConfig_RejectsUnknownNoiseStore(t *testing.T) {
	t.Setenv("POWER_NOISE_STORE", "etcd")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown noise store")
	}
}

func TestMasked(t *testing.T) {
	cfg := Config{
		Secret:  "s",
		APIKey:  "k",
		Storage: Storage{Postgres: &PostgresStorage{DSN: "postgres://u:p@h/db"}},
	}
	cfg.SmartThings.ClientSecret = "cs"

	masked := cfg.Masked()
	if masked.Secret != maskedValue || masked.APIKey != maskedValue || masked.SmartThings.ClientSecret != maskedValue {
		t.Errorf("secrets not masked: %+v", masked)
	}
	if masked.Storage.Postgres.DSN != maskedValue {
		t.Errorf("dsn not masked")
	}
	if cfg.Storage.Postgres.DSN != "postgres://u:p@h/db" {
		t.Errorf("original config was modified")
	}
	if masked.Redis.Password != "" {
		t.Errorf("empty secrets must stay empty")
	}
}
