package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bloodlink/internal/util"
	"bloodlink/pkg/auth"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/notify"
	"bloodlink/pkg/queue"
	"bloodlink/pkg/store"
)

const defaultNotifyTimeout = 3 * time.Second

// Config holds runtime configuration for the core application.
// Store, Sessions and Notifier take precedence over the driver settings.
type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	SessionStore  string
	SessionTTL    time.Duration
	SessionSecret string
	RedisAddr     string
	RedisPassword string
	Notifier      string
	NotifyStream  string
	AMQPURL       string
	AMQPExchange  string
	NotifyTimeout time.Duration

	Store    store.Store
	Sessions store.SessionStore
	Notify   notify.Notifier
}

// App is the core application service wiring together storage, sessions and notifications.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	notifier      notify.Notifier
	notifyTimeout time.Duration
	closers       []io.Closer
	now           func() time.Time
}

// New constructs the application and the back ends selected in cfg.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	a := &App{
		notifyTimeout: cfg.NotifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}

	a.store = cfg.Store
	if a.store == nil {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	a.closers = append(a.closers, a.store)

	a.sessions = cfg.Sessions
	if a.sessions == nil {
		sessions, closer, err := openSessions(cfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.sessions = sessions
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.notifier = cfg.Notify
	if a.notifier == nil {
		n, closer, err := openNotifier(cfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.notifier = n
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch strings.TrimSpace(cfg.StoreDriver) {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database URL required")
		}
		s, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openSessions(cfg Config) (store.SessionStore, io.Closer, error) {
	switch strings.TrimSpace(cfg.SessionStore) {
	case "", "memory":
		return store.NewMemorySessionStore(cfg.SessionTTL), nil, nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, nil, errors.New("redisAddr is required for redis sessions")
		}
		s := store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		return s, s, nil
	case "jwt":
		var (
			revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
			closer  io.Closer
		)
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			r := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
			revoker, closer = r, r
		}
		s, err := store.NewJWTSessionStore(cfg.SessionSecret, cfg.SessionTTL, revoker)
		if err != nil {
			if closer != nil {
				_ = closer.Close()
			}
			return nil, nil, fmt.Errorf("init jwt session store: %w", err)
		}
		return s, closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

func openNotifier(cfg Config) (notify.Notifier, io.Closer, error) {
	switch strings.TrimSpace(cfg.Notifier) {
	case "", "log":
		return notify.NewLogNotifier(nil), nil, nil
	case "redis":
		q, err := queue.NewRedisEventQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.NotifyStream,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init event queue: %w", err)
		}
		return notify.NewQueueNotifier(q), q, nil
	case "amqp":
		n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("init amqp notifier: %w", err)
		}
		return n, n, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// Close releases every back end opened by New, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SeedAdmin creates the bootstrap admin unless that exact username exists.
// It reports whether an admin was created.
func (a *App) SeedAdmin(ctx context.Context, username, password, name string) (bool, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if anyEmpty(username, password, name) {
		return false, ErrFieldsRequired
	}
	if len(password) > auth.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	_, ok, err := a.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup seed admin: %w", err)
	}
	if ok {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if _, err := a.store.CreateAdmin(ctx, domain.Admin{Username: username, PasswordHash: hash, Name: name}); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return false, nil
		}
		return false, fmt.Errorf("create seed admin: %w", err)
	}
	util.LoggerFromContext(ctx).Info("seeded admin account", "username", username)
	return true, nil
}

// requireSession resolves token or fails with ErrUnauthorized.
func (a *App) requireSession(ctx context.Context, token string) (domain.Session, error) {
	sess, ok := a.CurrentSession(ctx, token)
	if !ok {
		return domain.Session{}, ErrUnauthorized
	}
	return sess, nil
}
