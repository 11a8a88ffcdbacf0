package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "ERP_") {
			t.Setenv(key, "")
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ERP_JWT_SECRET", "super-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.DBDriver != "sqlite" || cfg.DBDSN != "file:erp.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Location != time.UTC || cfg.SecondaryOffset != time.Hour {
		t.Fatalf("unexpected time defaults %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.SystemUser != "Administrator" || !cfg.NotifyEnabled {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.JWTSecret != "super-secret" {
		t.Fatalf("expected secret to be loaded, got %q", cfg.JWTSecret)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ERP_JWT_SECRET", "s")
	t.Setenv("ERP_HTTP_PORT", "9090")
	t.Setenv("ERP_DB_DRIVER", "Postgres")
	t.Setenv("ERP_DB_DSN", "postgres://erp@localhost/erp?sslmode=disable")
	t.Setenv("ERP_TIMEZONE", "Asia/Tokyo")
	t.Setenv("ERP_SECONDARY_OFFSET", "-30m")
	t.Setenv("ERP_LOG_LEVEL", "debug")
	t.Setenv("ERP_NOTIFY_ENABLED", "false")
	t.Setenv("ERP_JOB_ROLLOVER_HOURLY", "@every 30m")
	t.Setenv("ERP_JOB_TIMEOUT", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 9090 || cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Location.String() != "Asia/Tokyo" || cfg.SecondaryOffset != -30*time.Minute {
		t.Fatalf("unexpected time values %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.NotifyEnabled {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.JobTimeout != 2*time.Minute {
		t.Fatalf("expected job timeout 2m, got %v", cfg.JobTimeout)
	}
	if got := cfg.JobSpecs["rollover-hourly"]; got != "@every 30m" {
		t.Fatalf("expected job spec override, got %q (all: %v)", got, cfg.JobSpecs)
	}
	if _, ok := cfg.JobSpecs["timeout"]; ok {
		t.Fatal("ERP_JOB_TIMEOUT must not be read as a job spec")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when the secret is missing")
	}
	if want := "missing required environment variables: ERP_JWT_SECRET"; err.Error() != want {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ERP_JWT_SECRET", "s")
	t.Setenv("ERP_HTTP_PORT", "http")
	t.Setenv("ERP_DB_DRIVER", "mysql")
	t.Setenv("ERP_TIMEZONE", "Mars/Olympus")
	t.Setenv("ERP_API_KEY_HASH", "plain")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
	want := "invalid environment values: ERP_API_KEY_HASH, ERP_DB_DRIVER, ERP_HTTP_PORT, ERP_TIMEZONE"
	if err.Error() != want {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_FileWithEnvironmentOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "erp.yaml")
	body := `
http_port: 7070
database:
  driver: sqlite
  dsn: file:/var/lib/erp/erp.db
auth:
  jwt_secret: from-file
timezone: Europe/Berlin
notify:
  enabled: false
  rate_per_sec: 2
jobs:
  meetings-weekly: "0 6 * * *"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv("ERP_HTTP_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 6060 {
		t.Fatalf("expected environment to win, got %d", cfg.HTTPPort)
	}
	if cfg.DBDSN != "file:/var/lib/erp/erp.db" || cfg.JWTSecret != "from-file" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Location.String() != "Europe/Berlin" || cfg.NotifyEnabled || cfg.NotifyRate != 2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if got := cfg.JobSpecs["meetings-weekly"]; got != "0 6 * * *" {
		t.Fatalf("expected job spec from file, got %q", got)
	}
}

func TestLoad_FileRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "erp.yaml")
	if err := os.WriteFile(path, []byte("http_prot: 1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
