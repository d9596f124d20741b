package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" || cfg.Timeout != 15*time.Second || cfg.MaxRetries != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Snapshot == "" {
		t.Fatalf("expected a default snapshot path")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DIRCTL_API_URL", "https://directory.example.com")
	t.Setenv("DIRCTL_TOKEN", "secret")
	t.Setenv("DIRCTL_MAX_RETRIES", "2")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://directory.example.com" || cfg.Token != "secret" || cfg.MaxRetries != 2 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirctl.yaml")
	content := "api_url: https://files.example.com\ntimeout: 3s\nsnapshot: /tmp/dirctl-test.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://files.example.com" || cfg.Timeout != 3*time.Second || cfg.Snapshot != "/tmp/dirctl-test.db" {
		t.Fatalf("file not applied: %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing explicit config file")
	}
}

func TestLoadConfig_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("DIRCTL_TIMEOUT", "0s")
	if _, err := loadConfig(""); err == nil {
		t.Fatalf("expected timeout error")
	}
}
