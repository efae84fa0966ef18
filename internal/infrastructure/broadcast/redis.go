package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisHub fans payloads out across API instances through Redis pub/sub.
// Each group maps to one Redis channel of the same name.
type RedisHub struct {
	client     redis.UniversalClient
	bufferSize int
}

func NewRedisHub(client redis.UniversalClient, bufferSize int) *RedisHub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RedisHub{client: client, bufferSize: bufferSize}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Publish returns the number of Redis subscribers that received payload,
// summed over all instances.
func (h *RedisHub) Publish(ctx context.Context, group string, payload []byte) (int, error) {
	n, err := h.client.Publish(ctx, group, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish: %w", err)
	}
	return int(n), nil
}

func (h *RedisHub) Subscribe(ctx context.Context, group string) (*Subscription, error) {
	ps := h.client.Subscribe(ctx, group)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, h.bufferSize)
	done := make(chan struct{})
	sub := &Subscription{ID: uuid.NewString(), Group: group, C: out}
	sub.release = func() {
		close(done)
		_ = ps.Close()
	}

	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					slog.Warn("realtime subscriber too slow, dropping message",
						"group", group, "subscriber_id", sub.ID)
				}
			}
		}
	}()
	return sub, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (h *RedisHub) Close() error { return nil }
