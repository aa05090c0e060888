package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abakirov/taskhub/internal/domain"
	"github.com/abakirov/taskhub/internal/repository"
	"github.com/abakirov/taskhub/internal/usecase"
)

type fakeTaskRepo struct {
	create  func(ctx context.Context, task *domain.Task) (*domain.Task, error)
	getByID func(ctx context.Context, taskID, userID string) (*domain.Task, error)
	list    func(ctx context.Context, userID string) ([]*domain.Task, error)
	update  func(ctx context.Context, taskID, userID string, input repository.UpdateTaskInput) (*domain.Task, error)
	delete  func(ctx context.Context, taskID, userID string) error
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	return r.create(ctx, task)
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	return r.getByID(ctx, taskID, userID)
}

func (r *fakeTaskRepo) List(ctx context.Context, userID string) ([]*domain.Task, error) {
	return r.list(ctx, userID)
}

func (r *fakeTaskRepo) Update(ctx context.Context, taskID, userID string, input repository.UpdateTaskInput) (*domain.Task, error) {
	return r.update(ctx, taskID, userID, input)
}

func (r *fakeTaskRepo) Delete(ctx context.Context, taskID, userID string) error {
	return r.delete(ctx, taskID, userID)
}

func (r *fakeTaskRepo) ListDueBetween(_ context.Context, _, _ time.Time) ([]*repository.DueTask, error) {
	return nil, nil
}

func TestTaskCreate_NotifiesOwnerSessions(t *testing.T) {
	repo := &fakeTaskRepo{
		create: func(_ context.Context, task *domain.Task) (*domain.Task, error) {
			task.ID = "task-1"
			return task, nil
		},
	}
	hub := &fakeNotifier{}

	created, err := usecase.NewTaskUsecase(repo, hub).Create(context.Background(), usecase.CreateTaskInput{
		UserID: "user-1",
		Title:  "Buy milk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "task-1" || created.Title != "Buy milk" {
		t.Errorf("created = %+v", created)
	}
	if len(hub.events) != 1 || hub.events[0] != "task.created" {
		t.Errorf("hub events = %v, want [task.created]", hub.events)
	}
}

func TestTaskUpdate_NotFound(t *testing.T) {
	repo := &fakeTaskRepo{
		update: func(_ context.Context, _, _ string, _ repository.UpdateTaskInput) (*domain.Task, error) {
			return nil, domain.ErrTaskNotFound
		},
	}
	hub := &fakeNotifier{}

	_, err := usecase.NewTaskUsecase(repo, hub).Update(context.Background(), "task-1", "user-1", repository.UpdateTaskInput{})
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("want ErrTaskNotFound, got %v", err)
	}
	if len(hub.events) != 0 {
		t.Errorf("no event must fire for a failed update, got %v", hub.events)
	}
}

func TestTaskDelete_NotifiesWithTaskID(t *testing.T) {
	repo := &fakeTaskRepo{
		delete: func(_ context.Context, taskID, userID string) error {
			if taskID != "task-1" || userID != "user-1" {
				t.Errorf("Delete(%q, %q)", taskID, userID)
			}
			return nil
		},
	}
	hub := &fakeNotifier{}

	if err := usecase.NewTaskUsecase(repo, hub).Delete(context.Background(), "task-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hub.events) != 1 || hub.events[0] != "task.deleted" {
		t.Errorf("hub events = %v, want [task.deleted]", hub.events)
	}
}
