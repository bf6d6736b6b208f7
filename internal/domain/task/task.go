package task

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// UpdateTaskRequest lists every field a client may change. Anything else in
// the payload (id, ownerId, timestamps) is dropped by the decoder.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (r UpdateTaskRequest) Patch() Patch {
	return Patch{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
	}
}

// Apply merges p into t field by field.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
