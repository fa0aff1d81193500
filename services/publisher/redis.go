package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher on a redis stream. Each sale transition
// becomes one XADD entry; the stream is capped so slow consumers never grow
// it without bound.
type RedisPublisher struct {
	client    *redis.Client
	stream    string
	maxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, maxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		stream:    stream,
		maxLength: maxLength,
	}
}

// Publish appends one transition event to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"brand":   key,
			"payload": string(message),
		},
	}).Err()
}

// TrimStream trims the stream to the configured maximum length.
func (p *RedisPublisher) TrimStream(ctx context.Context) error {
	return p.client.XTrimMaxLen(ctx, p.stream, int64(p.maxLength)).Err()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
