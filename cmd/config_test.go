package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"talent-mirror/internal/storage"
)

func TestParseConfigExpandsEnv(t *testing.T) {
	t.Setenv("TM_MATCHING_URL", "http://matcher:8000")
	t.Setenv("TM_PG_DSN", "host=db user=app")

	cfg, err := parseConfig([]byte(`
server:
  addr: ":9090"
database:
  driver: postgres
  dsn: ${TM_PG_DSN}
matching:
  base_url: ${TM_MATCHING_URL}
  read_retries: 2
scheduler:
  interval: 30m
  concurrency: 2
redis:
  addr: localhost:6379
  ttl: 1m
`))
	if err != nil {
		t.Fatalf("parseConfig error: %v", err)
	}
	if cfg.Matching.BaseURL != "http://matcher:8000" || cfg.Matching.ReadRetries != 2 {
		t.Fatalf("unexpected matching config %+v", cfg.Matching)
	}
	if cfg.Database.Driver != storage.DriverPostgres || cfg.Database.DSN != "host=db user=app" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Server.Addr != ":9090" || cfg.Scheduler.Interval != "30m" {
		t.Fatalf("unexpected server/scheduler config %+v %+v", cfg.Server, cfg.Scheduler)
	}
	if cfg.Redis.ttl() != time.Minute {
		t.Fatalf("unexpected redis ttl %v", cfg.Redis.ttl())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.Driver != storage.DriverSQLite || cfg.Database.DSN == "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Server.shutdownTimeout() != 5*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.Server.shutdownTimeout())
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TM_ADDR", "")
	os.Unsetenv("TM_ADDR")

	if err := os.WriteFile(".env", []byte("TM_ADDR=:7070\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile("app.yaml", []byte("server:\n  addr: ${TM_ADDR}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig("app.yaml")
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("expected addr from .env, got %q", cfg.Server.Addr)
	}
}
