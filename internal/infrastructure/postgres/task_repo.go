package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abakirov/taskhub/internal/domain"
	"github.com/abakirov/taskhub/internal/repository"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, user_id, title, description, due_at, completed, completed_at, created_at, updated_at`

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	query := `
		INSERT INTO tasks (user_id, title, description, due_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query, task.UserID, task.Title, task.Description, task.DueAt)
	return scanTask(row)
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	row := r.pool.QueryRow(ctx, query, taskID, userID)
	return scanTask(row)
}

func (r *TaskRepository) List(ctx context.Context, userID string) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, taskID, userID string, input repository.UpdateTaskInput) (*domain.Task, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{taskID, userID}

	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, expr+" = $"+strconv.Itoa(len(args)))
	}

	if input.Title != nil {
		add("title", *input.Title)
	}
	if input.Description != nil {
		add("description", *input.Description)
	}
	if input.DueAt != nil {
		add("due_at", *input.DueAt)
	}
	if input.Completed != nil {
		add("completed", *input.Completed)
		if *input.Completed {
			sets = append(sets, "completed_at = NOW()")
		} else {
			sets = append(sets, "completed_at = NULL")
		}
	}

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND user_id = $2
		RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query, args...)
	return scanTask(row)
}

func (r *TaskRepository) Delete(ctx context.Context, taskID, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) ListDueBetween(ctx context.Context, from, until time.Time) ([]*repository.DueTask, error) {
	query := `
		SELECT t.id, t.user_id, t.title, t.description, t.due_at, t.completed,
		       t.completed_at, t.created_at, t.updated_at, u.email
		FROM tasks t
		JOIN users u ON u.id = t.user_id
		WHERE t.completed = FALSE
		  AND t.due_at >= $1
		  AND t.due_at < $2
		ORDER BY t.due_at ASC`

	rows, err := r.pool.Query(ctx, query, from, until)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var due []*repository.DueTask
	for rows.Next() {
		var d repository.DueTask
		t := &d.Task
		err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueAt,
			&t.Completed, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt, &d.Email)
		if err != nil {
			return nil, fmt.Errorf("scan due task: %w", err)
		}
		due = append(due, &d)
	}
	return due, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueAt,
		&t.Completed, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}
