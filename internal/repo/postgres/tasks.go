package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, owner_id, title, description, completed, created_at, updated_at`

// TasksRepo scopes every statement by owner_id. A row owned by someone else
// is reported exactly like a missing row.
type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

// Create returns the row as stored, so timestamps carry the column's
// microsecond precision and match every later read.
func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	var created task.Task

	err := r.prom.ObserveDB("tasks.create", func() error {
		var err error
		created, err = scanTask(r.pool.QueryRow(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING `+taskColumns,
			t.ID, t.OwnerID, t.Title, t.Description, t.Completed, t.CreatedAt, t.UpdatedAt,
		))
		return err
	})

	if err != nil {
		return task.Task{}, err
	}

	return created, nil
}

func (r *TasksRepo) ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error) {
	output := make([]task.Task, 0)

	err := r.prom.ObserveDB("tasks.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+taskColumns+`
			FROM tasks
			WHERE owner_id = $1
			ORDER BY created_at DESC, id DESC`,
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *TasksRepo) GetOwned(ctx context.Context, ownerID, id string) (task.Task, error) {
	if !validIDs(ownerID, id) {
		return task.Task{}, task.ErrNotFound
	}

	var t task.Task

	err := r.prom.ObserveDB("tasks.get_owned", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx,
			`SELECT `+taskColumns+`
			FROM tasks
			WHERE id = $1 AND owner_id = $2`,
			id, ownerID,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

// UpdateOwned filters and mutates in one statement so a concurrent delete
// cannot slip in between a read and a write. updated_at never moves backwards.
func (r *TasksRepo) UpdateOwned(ctx context.Context, ownerID, id string, patch task.Patch, now time.Time) (task.Task, error) {
	if !validIDs(ownerID, id) {
		return task.Task{}, task.ErrNotFound
	}

	var t task.Task

	err := r.prom.ObserveDB("tasks.update_owned", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx,
			`UPDATE tasks
			SET title = COALESCE($3::text, title),
				description = COALESCE($4::text, description),
				completed = COALESCE($5::boolean, completed),
				updated_at = GREATEST(updated_at, $6::timestamptz)
			WHERE id = $1 AND owner_id = $2
			RETURNING `+taskColumns,
			id, ownerID, patch.Title, patch.Description, patch.Completed, now,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) DeleteOwned(ctx context.Context, ownerID, id string) error {
	if !validIDs(ownerID, id) {
		return task.ErrNotFound
	}

	var affected int64

	err := r.prom.ObserveDB("tasks.delete_owned", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
			id, ownerID,
		)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return task.ErrNotFound
	}

	return nil
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task

	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)

	return t, err
}

// ids are UUID columns; anything else cannot match a row.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
