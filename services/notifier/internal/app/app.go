package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bloodlink/pkg/notify"
	"bloodlink/pkg/queue"
)

// Config holds runtime configuration for the notifier worker.
type Config struct {
	RedisAddr     string
	RedisPassword string
	Stream        string
	Group         string
	Consumer      string
	Concurrency   int
	MaxRetries    int
	RetryDelay    time.Duration
	Forward       string
	AMQPURL       string
	AMQPExchange  string

	// Notifier overrides Forward when set.
	Notifier notify.Notifier
}

// App drains donor status events from the stream and hands them to a notifier.
type App struct {
	queue       *queue.RedisEventQueue
	notifier    notify.Notifier
	concurrency int
	closers     []io.Closer
	logger      *slog.Logger
}

// New wires the queue consumer and downstream notifier.
func New(cfg Config) (*App, error) {
	q, err := queue.NewRedisEventQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.Stream,
		Group:      cfg.Group,
		Consumer:   cfg.Consumer,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("init event queue: %w", err)
	}
	a := &App{
		queue:       q,
		concurrency: cfg.Concurrency,
		closers:     []io.Closer{q},
		logger:      slog.Default().With("service", "notifier"),
	}

	a.notifier = cfg.Notifier
	if a.notifier == nil {
		switch cfg.Forward {
		case "", "log":
			a.notifier = notify.NewLogNotifier(a.logger)
		case "amqp":
			n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("init amqp notifier: %w", err)
			}
			a.notifier = n
			a.closers = append(a.closers, n)
		default:
			_ = a.Close()
			return nil, fmt.Errorf("unknown forward %q", cfg.Forward)
		}
	}
	return a, nil
}

// Run consumes events until ctx is cancelled, then waits for in-flight
// deliveries before returning.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("notifier consuming", "concurrency", a.concurrency)
	a.queue.Start(ctx, a.concurrency, a.handle)
	<-ctx.Done()
	a.queue.Wait()
	a.logger.Info("notifier consumers stopped")
	return nil
}

func (a *App) handle(ctx context.Context, d queue.Delivery) error {
	if err := a.notifier.DonorStatusChanged(ctx, d.Event); err != nil {
		a.logger.Warn("donor status delivery failed",
			"delivery_id", d.ID,
			"donor_id", d.Event.DonorID,
			"attempt", d.Attempts,
			"err", err,
		)
		return err
	}
	return nil
}

// Close releases the queue and notifier connections.
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
