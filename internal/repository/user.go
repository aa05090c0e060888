package repository

import (
	"context"

	"github.com/abakirov/taskhub/internal/domain"
)

// UseCase depends on interface, not concrete implementation.
// This way we get: 1) can swap DB later without touching usecase 2) We can pass a mock implementation of interface in tests
type UserRepository interface {
	// Create promotes a verified pending registration into a durable user
	// record. The password hash is copied as-is; it was hashed at staging
	// time and is never re-derived here.
	Create(ctx context.Context, email, passwordHash, name string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
