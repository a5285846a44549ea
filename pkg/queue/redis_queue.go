package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bloodlink/pkg/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Delivery is one donor status event handed to a consumer.
type Delivery struct {
	ID       string
	Attempts int
	Event    domain.DonorStatusEvent
}

// Handler processes a delivery. A non-nil error schedules a retry.
type Handler func(context.Context, Delivery) error

// RedisEventQueue carries donor status events over a Redis stream
// with a consumer group, pending-claim and bounded retries.
type RedisEventQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
	wg           sync.WaitGroup
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

func NewRedisEventQueue(cfg RedisQueueConfig) (*RedisEventQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &RedisEventQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, ContextTimeoutEnabled: true}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
	}, nil
}

// Publish appends an event to the stream and returns its delivery ID.
func (q *RedisEventQueue) Publish(ctx context.Context, event domain.DonorStatusEvent) (string, error) {
	if strings.TrimSpace(event.DonorID) == "" {
		return "", errors.New("donorId required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	id := uuid.NewString()
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": id,
			"payload":  string(payload),
			"attempts": "0",
		},
	}).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Start launches concurrency consumer loops that run until ctx is done.
// Call Wait after cancelling ctx to let in-flight handlers finish.
func (q *RedisEventQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
}

// Wait blocks until every consumer loop started by Start has returned.
func (q *RedisEventQueue) Wait() {
	q.wg.Wait()
}

// Close releases the Redis client.
func (q *RedisEventQueue) Close() error {
	return q.client.Close()
}

func (q *RedisEventQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("queue group create failed", "stream", q.stream, "group", q.group, "err", err)
		}
	})
}

func (q *RedisEventQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				slog.Warn("queue read failed", "stream", q.stream, "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(q.retryDelay):
				}
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisEventQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisEventQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	delivery, err := decodeDelivery(msg)
	if err != nil {
		slog.Warn("queue dropping malformed message", "stream", q.stream, "msg_id", msg.ID, "err", err)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	delivery.Attempts++
	err = handler(ctx, delivery)
	if err == nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if delivery.Attempts >= q.maxRetries {
		slog.Error("queue event failed", "stream", q.stream, "event_id", delivery.ID, "attempts", delivery.Attempts, "err", err)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	if err := q.requeueAndAck(ctx, msg.ID, delivery); err != nil {
		slog.Warn("queue requeue failed", "stream", q.stream, "event_id", delivery.ID, "err", err)
	}
}

func (q *RedisEventQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

// requeueAndAck re-appends the delivery with its attempt count and acks the
// original in one transaction; on failure the original stays pending.
func (q *RedisEventQueue) requeueAndAck(ctx context.Context, msgID string, d Delivery) error {
	payload, err := json.Marshal(d.Event)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": d.ID,
			"payload":  string(payload),
			"attempts": strconv.Itoa(d.Attempts),
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err = pipe.Exec(ctx)
	return err
}

func decodeDelivery(msg redis.XMessage) (Delivery, error) {
	id, _ := msg.Values["event_id"].(string)
	payload, _ := msg.Values["payload"].(string)
	if id == "" || payload == "" {
		return Delivery{}, errors.New("event_id and payload required")
	}
	d := Delivery{ID: id}
	if v, _ := msg.Values["attempts"].(string); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			d.Attempts = n
		}
	}
	if err := json.Unmarshal([]byte(payload), &d.Event); err != nil {
		return Delivery{}, fmt.Errorf("decode event: %w", err)
	}
	return d, nil
}
