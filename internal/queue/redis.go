package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hpcq/hpcq/internal/job"
)

// RedisBroker backs the queue with a Redis list (LPUSH head, RPOP tail gives
// FIFO across the whole system) and the result store with SET EX keys.
type RedisBroker struct {
	rdb          *redis.Client
	queueKey     string
	resultPrefix string
}

func NewRedis(addr string) *RedisBroker {
	return &RedisBroker{
		rdb:          redis.NewClient(&redis.Options{Addr: addr}),
		queueKey:     job.QueueKey,
		resultPrefix: job.ResultKeyPrefix,
	}
}

func (b *RedisBroker) Enqueue(ctx context.Context, payload []byte) error {
	return b.rdb.LPush(ctx, b.queueKey, payload).Err()
}

func (b *RedisBroker) Dequeue(ctx context.Context) ([]byte, error) {
	data, err := b.rdb.RPop(ctx, b.queueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBroker) QueueLen(ctx context.Context) (int64, error) {
	return b.rdb.LLen(ctx, b.queueKey).Result()
}

func (b *RedisBroker) PutResult(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.resultPrefix+id, payload, ttl).Err()
}

func (b *RedisBroker) GetResult(ctx context.Context, id string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.resultPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
