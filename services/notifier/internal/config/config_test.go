package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg, err := Load(writeConfig(t, "redisAddr: localhost:6379\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NotifyStream != "donor:status-events" || cfg.Group != "notifier" || cfg.Concurrency != 2 || cfg.Forward != "log" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("NOTIFIER_CONCURRENCY", "5")
	cfg, err := Load(writeConfig(t, "redisAddr: localhost:6379\nretryDelay: 5s\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisAddr != "redis:6380" || cfg.Concurrency != 5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	d, err := cfg.RetryDelayDuration()
	if err != nil || d != 5*time.Second {
		t.Fatalf("retry delay = %v, %v", d, err)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AMQP_URL", "")
	cases := map[string]string{
		"missing redis":    "notifyStream: x\n",
		"amqp without url": "redisAddr: localhost:6379\nforward: amqp\n",
		"unknown forward":  "redisAddr: localhost:6379\nforward: sms\n",
		"bad retry delay":  "redisAddr: localhost:6379\nretryDelay: soon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
