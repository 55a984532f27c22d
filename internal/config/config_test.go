package config

import (
	"path/filepath"
	"testing"
	"time"
)

func setDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := setDirs(t)
	t.Setenv("DEBUG_MODE", "")
	t.Setenv("AUTH_SECRET_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreBackend != BackendFile {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.GeneratorTimeout != 15*time.Minute || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected timeouts %v %v", cfg.GeneratorTimeout, cfg.TokenTTL)
	}
	if cfg.SQLitePath != filepath.Join(dir, "data", "bookflow.db") {
		t.Fatalf("sqlite path should live under the data dir, got %s", cfg.SQLitePath)
	}
	if cfg.IndexPath != filepath.Join(dir, "data", "bleve") {
		t.Fatalf("unexpected index path %s", cfg.IndexPath)
	}
	if !cfg.DebugMode || !cfg.UsesDevSecret() {
		t.Fatalf("debug mode should default on with the development key")
	}
	if cfg.LogFile() != filepath.Join(dir, "logs", "bookflow.log") {
		t.Fatalf("unexpected log file %s", cfg.LogFile())
	}
}

func TestLoadOverrides(t *testing.T) {
	setDirs(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("INDEX_PATH", "")
	t.Setenv("GENERATOR_URL", "http://gen.local/")
	t.Setenv("GENERATOR_TIMEOUT", "30s")
	t.Setenv("DEBUG_MODE", "false")
	t.Setenv("AUTH_SECRET_KEY", "")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreBackend != BackendSQLite {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.IndexPath != "" {
		t.Fatalf("an empty INDEX_PATH selects the in-memory index, got %q", cfg.IndexPath)
	}
	if cfg.GeneratorURL != "http://gen.local" || cfg.GeneratorTimeout != 30*time.Second {
		t.Fatalf("unexpected generator settings %q %v", cfg.GeneratorURL, cfg.GeneratorTimeout)
	}
	if cfg.DebugMode || cfg.AuthSecret != "" || cfg.UsesDevSecret() {
		t.Fatalf("release mode must not fall back to the development key")
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisChannel != "bookflow:chapters" {
		t.Fatalf("unexpected redis settings %q %q", cfg.RedisAddr, cfg.RedisChannel)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setDirs(t)
	t.Setenv("STORE_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreBackend: BackendMemory, GeneratorTimeout: time.Second, TokenTTL: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg.TokenTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero token ttl")
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	if d := getEnvDuration("TOKEN_TTL", time.Hour); d != time.Hour {
		t.Fatalf("expected fallback, got %v", d)
	}
}
