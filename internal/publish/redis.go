// Package publish emits price events to Redis for the conversational bot
// surface, which consumes them alongside its read-only store access.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

const defaultChannel = "pricewatch:updates"

// Config controls the Redis connection and target channel.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSink implements pricewatch.EventSink over Redis pub/sub.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedis creates a Redis-backed sink. The connection is lazy; use Ping to
// verify it at startup.
func NewRedis(cfg Config) *RedisSink {
	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisSink{client: client, channel: channel}
}

// Ping verifies the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Publish sends one price event as JSON.
func (s *RedisSink) Publish(ctx context.Context, event pricewatch.PriceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal price event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish price event: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
