package cache

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/obs"
	"driver-dispatch-client/internal/ports"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "route:"

// RedisRouteCache keeps routes in Redis and lets Redis expire them.
type RedisRouteCache struct {
	client *redis.Client
	log    hclog.Logger
}

func NewRedisRouteCache(client *redis.Client, log hclog.Logger) *RedisRouteCache {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &RedisRouteCache{client: client, log: log}
}

func (r *RedisRouteCache) Get(ctx context.Context, key string) (_ domain.Route, err error) {
	defer obs.Time(ctx, r.log, "route.cache.redis.Get", ports.ErrCacheMiss)(&err)

	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Route{}, ports.ErrCacheMiss
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("get route cache: redis get: %w", err)
	}

	return decodeRoute(raw)
}

func (r *RedisRouteCache) Put(ctx context.Context, key string, route domain.Route, ttl time.Duration) error {
	raw, err := encodeRoute(route)
	if err != nil {
		return fmt.Errorf("insert route cache: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("insert route cache key=%q: redis set: %w", key, err)
	}
	return nil
}
