package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bloodlink/internal/util"
	"bloodlink/services/notifier/internal/app"
	"bloodlink/services/notifier/internal/config"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	retryDelay, err := cfg.RetryDelayDuration()
	if err != nil {
		logger.Error("invalid retry delay", "err", err)
		os.Exit(1)
	}

	worker, err := app.New(app.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Stream:        cfg.NotifyStream,
		Group:         cfg.Group,
		Consumer:      cfg.Consumer,
		Concurrency:   cfg.Concurrency,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    retryDelay,
		Forward:       cfg.Forward,
		AMQPURL:       cfg.AMQPURL,
		AMQPExchange:  cfg.AMQPExchange,
	})
	if err != nil {
		logger.Error("failed to init notifier", "err", err)
		os.Exit(1)
	}
	defer worker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("notifier stopped", "err", err)
	}
	logger.Info("notifier shut down")
}
