// Package redisstore wraps the Redis operations the query cache needs. Every
// call is timed into the redis_operation_duration_seconds histogram.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/geoview/internal/core/observability"
)

// scanBatch is the COUNT hint for SCAN and the UNLINK batch size.
const scanBatch = 256

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

type Client struct {
	rdb *redis.Client
}

// New connects and pings addr; an unreachable server is an error so the
// caller can start without the cache.
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}
	c := &Client{rdb: redis.NewClient(ro)}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

func observe(op string, start time.Time, err error) {
	observability.ObserveCacheOp(op, err, time.Since(start).Seconds())
}

// Get returns the value under key; ok is false when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	start := time.Now()
	val, err = c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		observe("get", start, nil)
		return nil, false, nil
	case err != nil:
		observe("get", start, err)
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	observe("get", start, nil)
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, val, ttl).Err()
	observe("set", start, err)
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and reports how many
// were removed. Keys written concurrently may survive.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	n, err := c.deletePrefix(ctx, prefix)
	observe("delete_prefix", start, err)
	return n, err
}

func (c *Client) deletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("refusing to delete with empty prefix")
	}
	var (
		removed int
		batch   = make([]string, 0, scanBatch)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis UNLINK %d keys: %w", len(batch), err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}
	it := c.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return removed, fmt.Errorf("redis SCAN %q: %w", prefix, err)
	}
	return removed, flush()
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observe("ping", start, err)
	return err
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
