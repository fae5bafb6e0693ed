package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Client is the process-wide Redis connection shared by the leaderboard
// cache and the ledger stream.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// URL (redis://[:password@]host:port[/db]) and
// opens a pooled client. No connection is made until first use.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping verifies the connection. Startup calls it to fail fast.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.WithField("addr", c.Options().Addr).Info("Connected to Redis")
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
