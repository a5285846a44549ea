package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, overridable with CONFIG_PATH.
var ConfigPath = configPathFromEnv()

const (
	defaultPort          = "8080"
	defaultSessionTTL    = "24h"
	defaultCookieName    = "donor_session"
	defaultNotifyStream  = "donor:status-events"
	defaultAMQPExchange  = "donor.events"
	defaultSeedUsername  = "admin"
	defaultSeedPassword  = "password"
	defaultSeedAdminName = "Admin User"
	minSessionSecretLen  = 32
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                string   `yaml:"port"`
	LogLevel            string   `yaml:"logLevel"`
	StoreDriver         string   `yaml:"storeDriver"`
	DatabaseURL         string   `yaml:"databaseURL"`
	SQLitePath          string   `yaml:"sqlitePath"`
	SessionStore        string   `yaml:"sessionStore"`
	SessionTTL          string   `yaml:"sessionTTL"`
	SessionSecret       string   `yaml:"sessionSecret"`
	CookieName          string   `yaml:"cookieName"`
	RedisAddr           string   `yaml:"redisAddr"`
	RedisPassword       string   `yaml:"redisPassword"`
	TrustedProxyCIDRs   []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins  []string `yaml:"corsAllowedOrigins"`
	Notifier            string   `yaml:"notifier"`
	NotifyStream        string   `yaml:"notifyStream"`
	AMQPURL             string   `yaml:"amqpURL"`
	AMQPExchange        string   `yaml:"amqpExchange"`
	SeedAdminUsername   string   `yaml:"seedAdminUsername"`
	SeedAdminPassword   string   `yaml:"seedAdminPassword"`
	SeedAdminName       string   `yaml:"seedAdminName"`
	DisableRegistration bool     `yaml:"disableRegistration"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("SESSION_STORE"); v != "" {
		cfg.SessionStore = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitList(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("NOTIFIER"); v != "" {
		cfg.Notifier = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("SEED_ADMIN_PASSWORD"); v != "" {
		cfg.SeedAdminPassword = v
	}
	if v := os.Getenv("DISABLE_REGISTRATION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisableRegistration = b
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "memory"
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = "memory"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.Notifier == "" {
		cfg.Notifier = "log"
	}
	if cfg.NotifyStream == "" {
		cfg.NotifyStream = defaultNotifyStream
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = defaultAMQPExchange
	}
	if cfg.SeedAdminUsername == "" {
		cfg.SeedAdminUsername = defaultSeedUsername
	}
	if cfg.SeedAdminPassword == "" {
		cfg.SeedAdminPassword = defaultSeedPassword
	}
	if cfg.SeedAdminName == "" {
		cfg.SeedAdminName = defaultSeedAdminName
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreDriver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return errors.New("config: sqlitePath is required for storeDriver=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for storeDriver=postgres (set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown storeDriver %q (memory, sqlite, postgres)", cfg.StoreDriver)
	}
	switch cfg.SessionStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for sessionStore=redis")
		}
	case "jwt":
		if len(cfg.SessionSecret) < minSessionSecretLen {
			return fmt.Errorf("config: sessionSecret must be at least %d bytes for sessionStore=jwt (set SESSION_SECRET)", minSessionSecretLen)
		}
	default:
		return fmt.Errorf("config: unknown sessionStore %q (memory, redis, jwt)", cfg.SessionStore)
	}
	switch cfg.Notifier {
	case "log":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for notifier=redis")
		}
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for notifier=amqp (set AMQP_URL)")
		}
	default:
		return fmt.Errorf("config: unknown notifier %q (log, redis, amqp)", cfg.Notifier)
	}
	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if ttl <= 0 {
		return errors.New("config: sessionTTL must be positive")
	}
	return nil
}

// ParseSessionTTL parses optional session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func configPathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
		return v
	}
	return "config.yaml"
}
