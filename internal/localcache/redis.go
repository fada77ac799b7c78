package localcache

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/allergyscan/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LocalKey(deviceID, name string) string
}

// RedisStore keeps a device's entries in redis under that device's key namespace.
type RedisStore struct {
	client   redisClient
	deviceID string
}

func NewRedisStore(client redisClient, deviceID string) *RedisStore {
	return &RedisStore{client: client, deviceID: deviceID}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.client.LocalKey(r.deviceID, key))
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.LocalKey(r.deviceID, key), value, 0)
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.LocalKey(r.deviceID, key))
}

// MultiRemove issues a single DEL, which redis applies atomically.
func (r *RedisStore) MultiRemove(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = r.client.LocalKey(r.deviceID, key)
	}
	return r.client.Del(ctx, scoped...)
}
