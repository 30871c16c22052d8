package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scribe/api/internal/store"
)

// Queue is the Redis list carrying scheduled events to the dispatcher.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(redisURL, key string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Queue{client: client, key: key}, nil
}

// NewQueueWithClient wraps an existing Redis client.
func NewQueueWithClient(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

func (q *Queue) Push(ctx context.Context, event store.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next queued event. The second return is
// false when the queue stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (store.Event, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return store.Event{}, false, nil
	}
	if err != nil {
		return store.Event{}, false, fmt.Errorf("dequeue event: %w", err)
	}
	if len(result) != 2 {
		return store.Event{}, false, fmt.Errorf("unexpected brpop reply length %d", len(result))
	}
	var event store.Event
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return store.Event{}, false, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, true, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
