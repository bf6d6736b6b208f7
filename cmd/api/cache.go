package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
)

// listCacheFor picks the task-list cache. Every process sharing a store must
// also share its cache, so the in-process cache only backs the in-process
// store; Postgres without Redis runs uncached.
func listCacheFor(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.TaskListCache, func()) {
	switch {
	case cfg.RedisAddr != "":
		rdb := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		redisCache := cache.NewRedisTaskCache(rdb, cfg.CacheTTL)
		if err := redisCache.Ping(ctx); err != nil {
			// reads fall through to the store while redis is away
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
		}

		return redisCache, func() { _ = rdb.Close() }

	case cfg.Store == config.StoreMemory:
		memCache := cache.NewMemoryTaskCache(cfg.CacheTTL)
		go sweepEvery(ctx, cfg.CacheTTL, memCache.Sweep)

		return memCache, func() {}

	default:
		log.Info("task list cache disabled; set REDIS_ADDR to enable it", "store", cfg.Store)
		return nil, func() {}
	}
}

// sweepEvery drops expired cache entries until ctx ends; lazy expiry alone
// keeps entries for owners who never read again.
func sweepEvery(ctx context.Context, every time.Duration, sweep func() int) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweep()
		}
	}
}
