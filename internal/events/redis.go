package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SessionChannel returns the Redis channel progress for a session is
// published on.
func SessionChannel(sessionID string) string {
	return "tour:" + sessionID + ":progress"
}

// RedisPublisher publishes events on a per-session Redis channel so
// clients following a session can subscribe to it.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher using an existing client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends the event to the session's channel.
func (p *RedisPublisher) Publish(ctx context.Context, event ProgressEvent) error {
	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, SessionChannel(event.SessionID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
