package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.FileURNNamespace != "bee" {
		t.Errorf("FileURNNamespace = %q, want bee", cfg.FileURNNamespace)
	}
	if cfg.MaxIterations != 25 || cfg.MaxRetriesPerStep != 3 || cfg.TotalMaxRetries != 10 {
		t.Errorf("loop limits = %d/%d/%d, want 25/3/10",
			cfg.MaxIterations, cfg.MaxRetriesPerStep, cfg.TotalMaxRetries)
	}
	if cfg.DB2.Port != 50000 {
		t.Errorf("DB2 port = %d, want 50000", cfg.DB2.Port)
	}
	if cfg.PSQL.Port != 5432 {
		t.Errorf("PSQL port = %d, want 5432", cfg.PSQL.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("FILE_URN_NAMESPACE", "acme")
	t.Setenv("MAX_ITERATIONS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 || cfg.FileURNNamespace != "acme" || cfg.MaxIterations != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestPublicPlatformURLFallback(t *testing.T) {
	t.Setenv("PLATFORM_URL", "http://internal:8334")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PublicPlatformURL != "http://internal:8334" {
		t.Errorf("PublicPlatformURL = %q, want fallback to PLATFORM_URL", cfg.PublicPlatformURL)
	}

	t.Setenv("PUBLIC_PLATFORM_URL", "https://chat.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PublicPlatformURL != "https://chat.example.com" {
		t.Errorf("PublicPlatformURL = %q", cfg.PublicPlatformURL)
	}
}

func TestCredentialsConfigured(t *testing.T) {
	db2 := DB2Config{Host: "h", Database: "d", Username: "u", Password: "p"}
	if !db2.Configured() {
		t.Error("complete DB2 config reported unconfigured")
	}
	db2.Password = ""
	if db2.Configured() {
		t.Error("incomplete DB2 config reported configured")
	}

	psql := PSQLConfig{Host: "h", Username: "u", Password: "p"}
	if !psql.Configured() {
		t.Error("complete PSQL config reported unconfigured")
	}
	psql.Host = ""
	if psql.Configured() {
		t.Error("incomplete PSQL config reported configured")
	}
}

func TestHistoryDBPath(t *testing.T) {
	cfg := Config{DataDir: "data"}
	if got := cfg.HistoryDBPath(); got != filepath.Join("data", "history.db") {
		t.Errorf("HistoryDBPath = %q", got)
	}
}
