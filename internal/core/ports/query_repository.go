package ports

import (
	"context"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

// QueryRepository persists queries. Every method except FindByShareToken is
// scoped by ownerID; a record owned by someone else behaves exactly like a
// missing one and yields domain.ErrQueryNotFound.
type QueryRepository interface {
	// Create assigns ID and stores q. Tags are already normalised.
	Create(ctx context.Context, q *domain.Query) (*domain.Query, error)
	FindByID(ctx context.Context, ownerID, id string) (*domain.Query, error)
	// ListByOwner returns the owner's queries, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Query, error)
	// ListTags returns the owner's distinct tags in ascending order.
	ListTags(ctx context.Context, ownerID string) ([]string, error)
	// Update replaces title, text and tags atomically and returns the stored record.
	Update(ctx context.Context, ownerID, id, title, text string, tags []string) (*domain.Query, error)
	Delete(ctx context.Context, ownerID, id string) error
	// MarkPublic sets is_public and the share token in one write, but only if
	// the query is still private. It returns the token the query ends up with,
	// which differs from token when a concurrent call won the race.
	// A token clash with another query yields domain.ErrShareTokenTaken.
	MarkPublic(ctx context.Context, ownerID, id, token string) (string, error)
	// FindByShareToken returns only public queries.
	FindByShareToken(ctx context.Context, token string) (*domain.Query, error)
}
