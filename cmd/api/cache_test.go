package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestListCacheFor(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.Config
		want cache.TaskListCache
	}{
		{
			name: "postgres without redis is uncached",
			cfg:  config.Config{Store: config.StorePostgres},
			want: nil,
		},
		{
			name: "postgres with redis",
			cfg:  config.Config{Store: config.StorePostgres, RedisAddr: mr.Addr()},
			want: &cache.RedisTaskCache{},
		},
		{
			name: "memory store keeps an in-process cache",
			cfg:  config.Config{Store: config.StoreMemory},
			want: &cache.MemoryTaskCache{},
		},
		{
			name: "memory store prefers redis when configured",
			cfg:  config.Config{Store: config.StoreMemory, RedisAddr: mr.Addr()},
			want: &cache.RedisTaskCache{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tt.cfg.CacheTTL = time.Minute
			got, closeCache := listCacheFor(ctx, tt.cfg, log)
			defer closeCache()

			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestSweepEvery_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	swept := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		sweepEvery(ctx, time.Millisecond, func() int {
			select {
			case swept <- struct{}{}:
			default:
			}
			return 0
		})
		close(done)
	}()

	<-swept
	cancel()
	<-done
}
