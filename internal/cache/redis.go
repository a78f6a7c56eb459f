package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/freezedry/internal/model"
)

// DefaultTTL is how long a response stays cached.
const DefaultTTL = 24 * time.Hour

// keyPrefix namespaces the cache keys.
const keyPrefix = "freezedry:response:"

// Hash fields.
const (
	fieldURL         = "url"
	fieldStatus      = "status"
	fieldContentType = "content_type"
	fieldHeaders     = "headers"
	fieldBody        = "body"
)

// Store is the subset of the Redis client the cache uses.
type Store interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCache caches responses in Redis. It implements fetch.Cache.
type RedisCache struct {
	store Store
	ttl   time.Duration
}

// Option configures a RedisCache.
type Option func(*RedisCache)

// WithTTL sets the expiry of cached responses.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New returns a cache on top of store.
func New(store Store, opts ...Option) *RedisCache {
	c := &RedisCache{store: store, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the Redis server at addr ("host:port" or a redis:// URL)
// and checks that it answers.
func Dial(ctx context.Context, addr string, opts ...Option) (*RedisCache, error) {
	options, err := redis.ParseURL(addr)
	if err != nil {
		options = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", options.Addr, err)
	}
	return New(client, opts...), nil
}

// Close closes the connection.
func (c *RedisCache) Close() error {
	return c.store.Close()
}

func key(url string) string {
	return keyPrefix + url
}

// Lookup implements fetch.Cache.
func (c *RedisCache) Lookup(ctx context.Context, url string) (*model.Response, bool, error) {
	fields, err := c.store.HGetAll(ctx, key(url)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached response: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return decode(fields)
}

func decode(fields map[string]string) (*model.Response, bool, error) {
	status, err := strconv.Atoi(fields[fieldStatus])
	if err != nil {
		return nil, false, fmt.Errorf("malformed cached status %q: %w", fields[fieldStatus], err)
	}
	resp := &model.Response{
		URL:         fields[fieldURL],
		StatusCode:  status,
		ContentType: fields[fieldContentType],
		Body:        []byte(fields[fieldBody]),
	}
	if h := fields[fieldHeaders]; h != "" {
		if err := json.Unmarshal([]byte(h), &resp.Headers); err != nil {
			return nil, false, fmt.Errorf("malformed cached headers: %w", err)
		}
	}
	return resp, true, nil
}

// Store implements fetch.Cache.
func (c *RedisCache) Store(ctx context.Context, url string, resp *model.Response) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}
	k := key(url)
	_, err = c.store.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			fieldURL, resp.URL,
			fieldStatus, strconv.Itoa(resp.StatusCode),
			fieldContentType, resp.ContentType,
			fieldHeaders, string(headers),
			fieldBody, resp.Body,
		)
		pipe.Expire(ctx, k, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}
