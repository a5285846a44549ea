package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "LOG_LEVEL", "STORE_DRIVER", "SESSION_STORE", "SESSION_TTL", "NOTIFIER", "SEED_ADMIN_PASSWORD"} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "logLevel: \"debug\"\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.StoreDriver != "memory" || cfg.SessionStore != "memory" || cfg.Notifier != "log" {
		t.Fatalf("unexpected drivers: store=%q session=%q notifier=%q", cfg.StoreDriver, cfg.SessionStore, cfg.Notifier)
	}
	if cfg.CookieName != "donor_session" {
		t.Fatalf("cookieName = %q", cfg.CookieName)
	}
	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("session ttl = %v err=%v", ttl, err)
	}
	if cfg.SeedAdminUsername != "admin" || cfg.SeedAdminPassword != "password" || cfg.SeedAdminName != "Admin User" {
		t.Fatalf("unexpected seed admin: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/donors.db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://donate.example.org")
	t.Setenv("DISABLE_REGISTRATION", "true")

	cfg, err := Load(writeConfig(t, `
port: "9090"
storeDriver: "memory"
corsAllowedOrigins:
  - "http://ignored.example"
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.StoreDriver != "sqlite" || cfg.SQLitePath != "/tmp/donors.db" {
		t.Fatalf("store override failed: %q %q", cfg.StoreDriver, cfg.SQLitePath)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://donate.example.org" {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.DisableRegistration {
		t.Fatalf("expected registration disabled")
	}
}

func TestValidateConfigRejectsIncompleteBackends(t *testing.T) {
	base := FileConfig{Port: "8080", SessionTTL: "24h", StoreDriver: "memory", SessionStore: "memory", Notifier: "log"}

	cases := map[string]func(c *FileConfig){
		"postgres without url":   func(c *FileConfig) { c.StoreDriver = "postgres" },
		"sqlite without path":    func(c *FileConfig) { c.StoreDriver = "sqlite" },
		"unknown store":          func(c *FileConfig) { c.StoreDriver = "mongo" },
		"redis sessions no addr": func(c *FileConfig) { c.SessionStore = "redis" },
		"jwt short secret":       func(c *FileConfig) { c.SessionStore = "jwt"; c.SessionSecret = "short" },
		"amqp without url":       func(c *FileConfig) { c.Notifier = "amqp" },
		"bad ttl":                func(c *FileConfig) { c.SessionTTL = "tomorrow" },
		"negative ttl":           func(c *FileConfig) { c.SessionTTL = "-1h" },
	}
	if err := validateConfig(base); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
