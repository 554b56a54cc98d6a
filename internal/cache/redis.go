package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// DefaultKeyPrefix namespaces hierarchy keys.
const DefaultKeyPrefix = "uilocate:hierarchy:"

// Redis is a Store shared between processes. Keys carry a native TTL, and
// the stored CreatedAt is checked again on read.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedis connects a client for opts. The connection is established lazily.
func NewRedis(opts RedisOptions, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.Prefix, opts.TTL, logger)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, now: time.Now, logger: logger}
}

func (r *Redis) key(hash string) string {
	return r.prefix + hash
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get loads and decodes the entry for hash.
func (r *Redis) Get(ctx context.Context, hash string) (*Entry, bool) {
	data, err := r.client.Get(ctx, r.key(hash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache read failed", zap.String("hash", hash), zap.Error(err))
		}
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.logger.Warn("redis cache entry unreadable", zap.String("hash", hash), zap.Error(err))
		return nil, false
	}
	if e.Hierarchy == nil || e.Expired(r.now(), r.ttl) {
		return nil, false
	}
	return &e, true
}

// Put encodes h and stores it with the store TTL.
func (r *Redis) Put(ctx context.Context, hash string, h *layout.Hierarchy) error {
	return r.store(ctx, &Entry{ImageHash: hash, Hierarchy: h, CreatedAt: r.now()})
}

func (r *Redis) store(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ttl := r.ttl - r.now().Sub(e.CreatedAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(e.ImageHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Evict deletes the key for hash.
func (r *Redis) Evict(ctx context.Context, hash string) error {
	if err := r.client.Del(ctx, r.key(hash)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
