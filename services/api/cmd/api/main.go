package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloodlink/internal/util"
	"bloodlink/services/api/internal/app"
	"bloodlink/services/api/internal/config"
	"bloodlink/services/api/internal/security"
	"bloodlink/services/api/internal/server"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("api server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return err
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCore, err := app.New(ctx, app.Config{
		StoreDriver:   cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		SQLitePath:    cfg.SQLitePath,
		SessionStore:  cfg.SessionStore,
		SessionTTL:    sessionTTL,
		SessionSecret: cfg.SessionSecret,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Notifier:      cfg.Notifier,
		NotifyStream:  cfg.NotifyStream,
		AMQPURL:       cfg.AMQPURL,
		AMQPExchange:  cfg.AMQPExchange,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Warn("close app", "err", err)
		}
	}()

	created, err := appCore.SeedAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword, cfg.SeedAdminName)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created && cfg.SeedAdminPassword == "password" {
		logger.Warn("seed admin uses the default password; set SEED_ADMIN_PASSWORD", "username", cfg.SeedAdminUsername)
	}

	alerter := security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, "")
	defer func() { _ = alerter.Close() }()

	httpServer := server.New(server.Config{
		App:                 appCore,
		CookieName:          cfg.CookieName,
		SessionTTL:          sessionTTL,
		TrustedProxies:      trustedProxies,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		DisableRegistration: cfg.DisableRegistration,
		Alerter:             alerter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server listening", "addr", addr, "store", cfg.StoreDriver, "sessions", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
