package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"golang.org/x/sync/singleflight"
)

const msgTaskNotFound = "Task not found"

const defaultListLoadTimeout = 5 * time.Second

// TaskStore must apply the (id, owner) filter itself, inside the same
// statement that reads or mutates the row.
type TaskStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error)
	GetOwned(ctx context.Context, ownerID, id string) (task.Task, error)
	UpdateOwned(ctx context.Context, ownerID, id string, patch task.Patch, now time.Time) (task.Task, error)
	DeleteOwned(ctx context.Context, ownerID, id string) error
}

type CreateTaskInput struct {
	Title       string
	Description string
}

type TaskService struct {
	store TaskStore
	cache cache.TaskListCache
	log   *slog.Logger
	prom  *observability.Prom
	now   func() time.Time

	// concurrent list misses for one owner share a single store read
	loads       singleflight.Group
	loadTimeout time.Duration

	// gens counts writes per owner; a list read only fills the cache when no
	// write landed while it was running.
	mu   sync.Mutex
	gens map[string]uint64
}

type TaskOption func(*TaskService)

func WithTaskCache(c cache.TaskListCache) TaskOption {
	return func(s *TaskService) {
		s.cache = c
	}
}

func WithTaskClock(now func() time.Time) TaskOption {
	return func(s *TaskService) {
		s.now = now
	}
}

// WithTaskLoadTimeout bounds the shared list read, which outlives the
// cancellation of whichever request started it.
func WithTaskLoadTimeout(d time.Duration) TaskOption {
	return func(s *TaskService) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

func NewTaskService(store TaskStore, log *slog.Logger, prom *observability.Prom, opts ...TaskOption) *TaskService {
	if log == nil {
		log = slog.Default()
	}

	s := &TaskService{
		store:       store,
		log:         log,
		prom:        prom,
		now:         time.Now,
		loadTimeout: defaultListLoadTimeout,
		gens:        make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *TaskService) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	if s.cache != nil {
		tasks, ok, err := s.cache.Get(ctx, ownerID)
		switch {
		case err != nil:
			s.prom.ObserveCache("error")
			s.log.WarnContext(ctx, "task cache get failed", "user_id", ownerID, "err", err)
		case ok:
			s.prom.ObserveCache("hit")
			return tasks, nil
		default:
			s.prom.ObserveCache("miss")
		}
	}

	ch := s.loads.DoChan(ownerID, func() (any, error) {
		return s.load(ctx, ownerID)
	})

	select {
	case <-ctx.Done():
		return nil, s.internal(ctx, "list tasks", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, s.internal(ctx, "list tasks", res.Err)
		}
		return res.Val.([]task.Task), nil
	}
}

// load is the shared body of a list read. It keeps ctx values for logging and
// tracing but not its deadline or cancellation.
func (s *TaskService) load(ctx context.Context, ownerID string) ([]task.Task, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
	defer cancel()

	gen := s.generation(ownerID)

	tasks, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.fill(ctx, ownerID, gen, tasks)

	return tasks, nil
}

// fill caches tasks unless a write for ownerID happened after gen was read.
// A write that lands during Set is caught by the second check.
func (s *TaskService) fill(ctx context.Context, ownerID string, gen uint64, tasks []task.Task) {
	if s.cache == nil || s.generation(ownerID) != gen {
		return
	}

	if err := s.cache.Set(ctx, ownerID, tasks); err != nil {
		s.log.WarnContext(ctx, "task cache set failed", "user_id", ownerID, "err", err)
		return
	}

	if s.generation(ownerID) != gen {
		s.dropCached(ctx, ownerID)
	}
}

func (s *TaskService) generation(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[ownerID]
}

func (s *TaskService) Create(ctx context.Context, ownerID string, in CreateTaskInput) (task.Task, error) {
	if blank(in.Title) {
		return task.Task{}, apperr.InvalidInput("Title is required")
	}

	t, err := s.store.Create(ctx, task.New(ownerID, in.Title, in.Description, s.now().UTC()))
	if err != nil {
		return task.Task{}, s.internal(ctx, "create task", err)
	}

	s.invalidate(ctx, ownerID)

	return t, nil
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	t, err := s.store.GetOwned(ctx, ownerID, id)
	if err != nil {
		return task.Task{}, s.storeErr(ctx, "get task", err)
	}

	return t, nil
}

func (s *TaskService) Update(ctx context.Context, ownerID, id string, patch task.Patch) (task.Task, error) {
	if patch.Title != nil && blank(*patch.Title) {
		return task.Task{}, apperr.InvalidInput("Title cannot be empty")
	}

	t, err := s.store.UpdateOwned(ctx, ownerID, id, patch, s.now().UTC())
	if err != nil {
		return task.Task{}, s.storeErr(ctx, "update task", err)
	}

	s.invalidate(ctx, ownerID)

	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteOwned(ctx, ownerID, id); err != nil {
		return s.storeErr(ctx, "delete task", err)
	}

	s.invalidate(ctx, ownerID)

	return nil
}

// invalidate never fails the caller; the write has already been committed.
// Reads started after this point do not join a flight that began before it,
// and reads already running will not fill the cache.
func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	s.mu.Lock()
	s.gens[ownerID]++
	s.mu.Unlock()

	s.loads.Forget(ownerID)

	s.dropCached(ctx, ownerID)
}

func (s *TaskService) dropCached(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		s.log.WarnContext(ctx, "task cache invalidate failed", "user_id", ownerID, "err", err)
	}
}

func (s *TaskService) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, task.ErrNotFound) {
		return apperr.NotFound(msgTaskNotFound, err)
	}
	return s.internal(ctx, op, err)
}

func (s *TaskService) internal(ctx context.Context, op string, err error) error {
	s.log.ErrorContext(ctx, op+" failed", "err", err)
	return apperr.Internal(err)
}
