package ports

import (
	"context"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

// UserRepository is the credential store. Create must rely on a storage-level
// uniqueness constraint on username and report a clash as domain.ErrUserExists.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// FindByUsername returns domain.ErrUserNotFound when no user matches.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}
