package cachesvc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
)

const keyPrefix = "elimu:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ curriculum.ReportCache = (*RedisCache)(nil) // interface compliance check

// NewRedisCache connects to redis and pings it.
func NewRedisCache(conf *core.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Cache.Redis.Addr,
		Password: conf.Cache.Redis.Password,
		DB:       conf.Cache.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, ttl: conf.Cache.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (curriculum.Report, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return curriculum.Report{}, curriculum.ErrCacheMiss
		}
		return curriculum.Report{}, err
	}
	var r curriculum.Report
	if err = json.Unmarshal(data, &r); err != nil {
		return curriculum.Report{}, err
	}
	return r, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r curriculum.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	return c.client.Del(ctx, prefixed...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
