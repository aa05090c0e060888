package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/abakirov/taskhub/internal/domain"
	"github.com/abakirov/taskhub/internal/repository"
)

type TaskUsecase struct {
	repo repository.TaskRepository
	hub  notifier
}

func NewTaskUsecase(repo repository.TaskRepository, hub notifier) *TaskUsecase {
	return &TaskUsecase{repo: repo, hub: hub}
}

type CreateTaskInput struct {
	UserID      string
	Title       string
	Description *string
	DueAt       *time.Time
}

func (u *TaskUsecase) Create(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	task := &domain.Task{
		UserID:      input.UserID,
		Title:       input.Title,
		Description: input.Description,
		DueAt:       input.DueAt,
	}

	created, err := u.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	// Other live sessions of the same user pick the change up immediately.
	u.hub.Notify(created.UserID, "task.created", "Task created", created)
	return created, nil
}

func (u *TaskUsecase) GetByID(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	task, err := u.repo.GetByID(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (u *TaskUsecase) List(ctx context.Context, userID string) ([]*domain.Task, error) {
	tasks, err := u.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (u *TaskUsecase) Update(ctx context.Context, taskID, userID string, input repository.UpdateTaskInput) (*domain.Task, error) {
	task, err := u.repo.Update(ctx, taskID, userID, input)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	u.hub.Notify(task.UserID, "task.updated", "Task updated", task)
	return task, nil
}

func (u *TaskUsecase) Delete(ctx context.Context, taskID, userID string) error {
	if err := u.repo.Delete(ctx, taskID, userID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	u.hub.Notify(userID, "task.deleted", "Task deleted", map[string]string{"id": taskID})
	return nil
}
