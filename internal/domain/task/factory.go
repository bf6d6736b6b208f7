package task

import (
	"time"

	"github.com/google/uuid"
)

func New(ownerID, title, description string, now time.Time) Task {
	return Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
