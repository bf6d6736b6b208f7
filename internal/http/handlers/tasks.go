package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/gin-gonic/gin"
)

type Tasks interface {
	List(ctx context.Context, ownerID string) ([]task.Task, error)
	Create(ctx context.Context, ownerID string, in service.CreateTaskInput) (task.Task, error)
	Get(ctx context.Context, ownerID, id string) (task.Task, error)
	Update(ctx context.Context, ownerID, id string, patch task.Patch) (task.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type TasksHandler struct {
	tasks   Tasks
	log     *slog.Logger
	timeout time.Duration
}

func NewTasksHandler(tasks Tasks, log *slog.Logger, timeout time.Duration) *TasksHandler {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TasksHandler{tasks: tasks, log: log, timeout: timeout}
}

// owner returns the authenticated user id. Routes are mounted behind the auth
// gate, so a miss means the router is misconfigured.
func (h *TasksHandler) owner(ctx *gin.Context) (string, bool) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		h.log.ErrorContext(ctx.Request.Context(), "task route reached without identity", "path", ctx.FullPath())
		RespondInternal(ctx)
		return "", false
	}
	return userID, true
}

func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	ownerID, ok := h.owner(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	tasks, err := h.tasks.List(cctx, ownerID)
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	if tasks == nil {
		tasks = []task.Task{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, tasks)
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	ownerID, ok := h.owner(ctx)
	if !ok {
		return
	}

	var req task.CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	t, err := h.tasks.Create(cctx, ownerID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

func (h *TasksHandler) GetTask(ctx *gin.Context) {
	ownerID, ok := h.owner(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	t, err := h.tasks.Get(cctx, ownerID, ctx.Param("id"))
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	ownerID, ok := h.owner(ctx)
	if !ok {
		return
	}

	var req task.UpdateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	t, err := h.tasks.Update(cctx, ownerID, ctx.Param("id"), req.Patch())
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	ownerID, ok := h.owner(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.tasks.Delete(cctx, ownerID, ctx.Param("id")); err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task removed"})
}
