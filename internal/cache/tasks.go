package cache

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

// TaskListCache holds one owner's task list. Keys are always derived from the
// owner id, so a lookup can only ever return that owner's tasks.
type TaskListCache interface {
	Get(ctx context.Context, ownerID string) ([]task.Task, bool, error)
	Set(ctx context.Context, ownerID string, tasks []task.Task) error
	Invalidate(ctx context.Context, ownerID string) error
}

func TaskListKey(ownerID string) string {
	return "tasks:list:v1:owner=" + ownerID
}

type MemoryTaskCache struct {
	c *TTL[[]task.Task]
}

func NewMemoryTaskCache(ttl time.Duration) *MemoryTaskCache {
	return &MemoryTaskCache{c: NewTTL[[]task.Task](ttl, nil)}
}

// Get and Set copy the slice so callers never share backing arrays.
func (m *MemoryTaskCache) Get(_ context.Context, ownerID string) ([]task.Task, bool, error) {
	tasks, ok := m.c.Get(TaskListKey(ownerID))
	if !ok {
		return nil, false, nil
	}

	return append([]task.Task(nil), tasks...), true, nil
}

func (m *MemoryTaskCache) Set(_ context.Context, ownerID string, tasks []task.Task) error {
	m.c.Set(TaskListKey(ownerID), append([]task.Task(nil), tasks...))
	return nil
}

func (m *MemoryTaskCache) Invalidate(_ context.Context, ownerID string) error {
	m.c.Delete(TaskListKey(ownerID))
	return nil
}

func (m *MemoryTaskCache) Sweep() int {
	return m.c.Sweep()
}
