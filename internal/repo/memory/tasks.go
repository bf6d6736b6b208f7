package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
}

func NewTasksRepo() *TasksRepo {
	return &TasksRepo{
		items: make(map[string]task.Task),
	}
}

func (r *TasksRepo) Create(_ context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()

	return t, nil
}

func (r *TasksRepo) ListByOwner(_ context.Context, ownerID string) ([]task.Task, error) {
	r.mu.RLock()
	out := make([]task.Task, 0)
	for _, t := range r.items {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	// newest first, id as tie breaker
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *TasksRepo) GetOwned(_ context.Context, ownerID, id string) (task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok || t.OwnerID != ownerID {
		return task.Task{}, task.ErrNotFound
	}

	return t, nil
}

func (r *TasksRepo) UpdateOwned(_ context.Context, ownerID, id string, patch task.Patch, now time.Time) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok || t.OwnerID != ownerID {
		return task.Task{}, task.ErrNotFound
	}

	patch.Apply(&t)
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}

	r.items[id] = t

	return t, nil
}

func (r *TasksRepo) DeleteOwned(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok || t.OwnerID != ownerID {
		return task.ErrNotFound
	}

	delete(r.items, id)

	return nil
}
