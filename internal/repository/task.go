package repository

import (
	"context"
	"time"

	"github.com/abakirov/taskhub/internal/domain"
)

type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueAt       *time.Time
	Completed   *bool
}

// DueTask pairs a task with its owner's email for the reminder sweep.
type DueTask struct {
	Task  domain.Task
	Email string
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, taskID, userID string) (*domain.Task, error)
	List(ctx context.Context, userID string) ([]*domain.Task, error)
	Update(ctx context.Context, taskID, userID string, input UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, taskID, userID string) error

	// ListDueBetween powers the reminder sweep: incomplete tasks whose due
	// time falls in [from, until), joined with the owner's email.
	ListDueBetween(ctx context.Context, from, until time.Time) ([]*DueTask, error)
}
