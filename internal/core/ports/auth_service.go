package ports

import (
	"context"
	"time"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

type AuthService interface {
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}

// TokenVerifier decodes a bearer token into the caller identity.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// TokenIssuer signs a session token for user and reports when it expires.
type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}
