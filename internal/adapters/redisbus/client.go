// Package redisbus connects the engine to Redis pub/sub: trade intents arrive
// on one channel and lifecycle events are published on another.
package redisbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sniperBot/internal/ports"
)

// Config holds connection and channel settings.
type Config struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	IntentChannel string
	EventChannel  string
	KeyPrefix     string
	DedupeTTL     time.Duration // How long a seen token is ignored
}

func (c *Config) applyDefaults() {
	if c.IntentChannel == "" {
		c.IntentChannel = "sniper:intents"
	}
	if c.EventChannel == "" {
		c.EventChannel = "sniper:events"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "sniper:"
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 24 * time.Hour
	}
}

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
	cfg Config
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required: %w", ports.ErrConfigurationError)
	}
	cfg.applyDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", ports.ErrConnectionFailed, err)
	}
	return &Client{rdb: rdb, cfg: cfg}, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", ports.ErrConnectionFailed, err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Intents returns a subscriber for the configured intent channel.
func (c *Client) Intents(logger ports.Logger) *IntentSubscriber {
	return &IntentSubscriber{
		rdb:     c.rdb,
		dedupe:  c.rdb,
		channel: c.cfg.IntentChannel,
		prefix:  c.cfg.KeyPrefix,
		ttl:     c.cfg.DedupeTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Events returns a publisher for the configured event channel.
func (c *Client) Events() *EventPublisher {
	return &EventPublisher{rdb: c.rdb, channel: c.cfg.EventChannel}
}
