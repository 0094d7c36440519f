package guestcart

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps guest carts of API sessions in Redis. Every save
// refreshes the expiry, so idle carts disappear after ttl.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: "storefront:guestcart:", ttl: ttl}
}

func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
