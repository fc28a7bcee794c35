// Package cache is the transient-store layer: short-TTL keys for search
// fan-in, throttling and sweep assembly, plus the durable event stream.
// It wraps go-redis v9 behind the handful of operations the coordinators
// need; Redis is the single source of truth, there is no in-process
// write-behind.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for missing keys.
var ErrNotFound = fmt.Errorf("cache: key not found")

type Client struct {
	rdb *redis.Client
}

// New connects to Redis using a redis:// URL and verifies connectivity.
func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.PoolSize = 20

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", opts.Addr, err)
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

// Set stores a value; ttl <= 0 means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX stores a value only when the key is absent; reports whether the
// write happened. The throttle sentinel relies on this being atomic.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// ScanKeys collects every key matching pattern using cursor iteration.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

// MGet fetches the values for every key matching pattern, skipping keys
// that expired between scan and read.
func (c *Client) MGetPattern(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.ScanKeys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		val, err := c.Get(ctx, key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return values, nil
}

// --- stream operations (event worker) ---

// EnsureGroup creates the consumer group at "$", creating the stream if
// missing; an already-existing group is not an error.
func (c *Client) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		slog.Info("consumer group already exists", "stream", stream, "group", group)
		return nil
	}
	return err
}

// XAdd appends fields as a new stream entry and returns its id.
func (c *Client) XAdd(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	return c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Result()
}

// ReadGroup blocks up to block for at most count new entries for consumer.
func (c *Client) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]redis.XMessage, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []redis.XMessage
	for _, s := range res {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (c *Client) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return c.rdb.XAck(ctx, stream, group, ids...).Err()
}
