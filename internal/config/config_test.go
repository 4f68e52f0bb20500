package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
log:
  mode: dev
auth:
  jwtSecret: from-file
  tokenTTL: 2h
editor:
  debounce: 150ms
  matchMode: segment
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Editor.MatchMode != "segment" {
		t.Fatalf("expected segment, got %q", cfg.Editor.MatchMode)
	}
	if d := TTLDuration(cfg.Editor.Debounce, time.Second); d != 150*time.Millisecond {
		t.Fatalf("expected 150ms, got %v", d)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "" {
		t.Fatalf("expected empty port, got %q", cfg.Server.Port)
	}
}

func TestLoadEnvIgnoresMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := TTLDuration("nonsense", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for bad input, got %v", d)
	}
}
