package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type RedisTaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTaskCache(rdb *redis.Client, ttl time.Duration) *RedisTaskCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisTaskCache{rdb: rdb, ttl: ttl}
}

func (c *RedisTaskCache) Get(ctx context.Context, ownerID string) ([]task.Task, bool, error) {
	raw, err := c.rdb.Get(ctx, TaskListKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var tasks []task.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, false, err
	}

	return tasks, true, nil
}

func (c *RedisTaskCache) Set(ctx context.Context, ownerID string, tasks []task.Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, TaskListKey(ownerID), raw, c.ttl).Err()
}

func (c *RedisTaskCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.rdb.Del(ctx, TaskListKey(ownerID)).Err()
}

// Ping checks redis connectivity.
func (c *RedisTaskCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
