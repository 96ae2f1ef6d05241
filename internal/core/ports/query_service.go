package ports

import (
	"context"
	"time"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

// QueryInput carries the user-editable fields of a query.
type QueryInput struct {
	Title string
	Text  string
	Tags  []string
}

// QueryService defines the owner-scoped query use cases plus the anonymous
// share lookup.
type QueryService interface {
	Create(ctx context.Context, ownerID string, in QueryInput) (*domain.Query, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Query, error)
	List(ctx context.Context, ownerID string) ([]*domain.Query, error)
	ListTags(ctx context.Context, ownerID string) ([]string, error)
	Update(ctx context.Context, ownerID, id string, in QueryInput) (*domain.Query, error)
	Delete(ctx context.Context, ownerID, id string) error
	Share(ctx context.Context, ownerID, id string) (string, error)
	GetPublic(ctx context.Context, token string) (*domain.PublicQuery, error)
}

// ShareCache holds public views keyed by share token. Implementations may be
// unavailable; callers treat every error as a miss.
type ShareCache interface {
	Get(ctx context.Context, token string) (*domain.PublicQuery, bool, error)
	Set(ctx context.Context, token string, view *domain.PublicQuery, ttl time.Duration) error
	Invalidate(ctx context.Context, token string) error
}
