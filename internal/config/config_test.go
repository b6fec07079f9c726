package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://home.local:9000
  timeout: 3s
auth:
  username: alice
  password: secret
session:
  startup_policy: restore
  token: abc
journal:
  path: /tmp/journal.db
log:
  level: debug
reconcile:
  concurrency: 2
backend:
  port: "9000"
  jwt_secret: s3
  token_ttl: 5m
  users:
    alice: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://home.local:9000" || cfg.API.Timeout != 3*time.Second {
		t.Fatalf("unexpected api config: %+v", cfg.API)
	}
	if cfg.Auth.Username != "alice" || cfg.Auth.Password != "secret" {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Session.StartupPolicy != PolicyRestore || cfg.Session.Token != "abc" {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Journal.Path != "/tmp/journal.db" || cfg.Log.Level != "debug" || cfg.Reconcile.Concurrency != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Backend.TokenTTL != 5*time.Minute || cfg.Backend.Users["alice"] != "secret" {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
}

func TestLoad_DefaultsWhenSearchPathMissing(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != defaultBaseURL || cfg.Journal.Path != defaultJournalPath {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Session.StartupPolicy != PolicyClear {
		t.Fatalf("expected clear policy by default, got %q", cfg.Session.StartupPolicy)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://a.local\n")
	t.Setenv("HOMESYNC_API_BASE_URL", "http://b.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://b.local" {
		t.Fatalf("expected env override, got %q", cfg.API.BaseURL)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			API:       APIConfig{BaseURL: "http://x", Timeout: time.Second},
			Session:   SessionConfig{StartupPolicy: PolicyClear},
			Reconcile: ReconcileConfig{Concurrency: 1},
			Backend:   BackendConfig{TokenTTL: time.Minute},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad url", func(c *Config) { c.API.BaseURL = "not a url" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"bad policy", func(c *Config) { c.Session.StartupPolicy = "forget" }, true},
		{"zero concurrency", func(c *Config) { c.Reconcile.Concurrency = 0 }, true},
		{"zero ttl", func(c *Config) { c.Backend.TokenTTL = 0 }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
