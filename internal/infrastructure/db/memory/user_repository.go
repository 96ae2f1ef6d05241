// Package memory provides process-local repositories. They honour the same
// contracts as the Postgres and Mongo adapters and back the tests and the
// "memory" store driver.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

type UserRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byUsername: make(map[string]*domain.User)}
}

// Create inserts user. The username check and the insert happen under one
// lock, which plays the role of the unique index.
func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return nil, domain.ErrUserExists
	}

	stored := *user
	stored.ID = uuid.NewString()
	r.byUsername[stored.Username] = &stored

	out := stored
	return &out, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}
