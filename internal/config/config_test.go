package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FOLIO_CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Fatalf("Addr = %q, want :8787", cfg.Addr)
	}
	if cfg.DraftTTL != 2*time.Hour {
		t.Fatalf("DraftTTL = %v, want 2h", cfg.DraftTTL)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.DBMaxConns != 15 {
		t.Fatalf("DBMaxConns = %d, want 15", cfg.DBMaxConns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("FOLIO_DRAFT_TTL_SECONDS", "60")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.DraftTTL != time.Minute {
		t.Fatalf("DraftTTL = %v, want 1m", cfg.DraftTTL)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	if err := os.WriteFile(path, []byte("FOLIO_CORS_ORIGIN: https://portal.example.org\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FOLIO_CONFIG_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CORSOrigin != "https://portal.example.org" {
		t.Fatalf("CORSOrigin = %q", cfg.CORSOrigin)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("FOLIO_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
