package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDedupe remembers processed webhook event ids. It is a fast path
// only; handlers stay idempotent against the database without it.
type EventDedupe interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type redisEventDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventDedupe(client *redis.Client, ttl time.Duration) EventDedupe {
	return &redisEventDedupe{client: client, ttl: ttl}
}

func dedupeKey(eventID string) string {
	return "webhook:processed:" + eventID
}

func (d *redisEventDedupe) Seen(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	n, err := d.client.Exists(ctx, dedupeKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisEventDedupe) MarkProcessed(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	return d.client.Set(ctx, dedupeKey(eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}

// NoopEventDedupe is used when redis is not configured.
type NoopEventDedupe struct{}

func (NoopEventDedupe) Seen(context.Context, string) (bool, error) { return false, nil }
func (NoopEventDedupe) MarkProcessed(context.Context, string) error { return nil }
