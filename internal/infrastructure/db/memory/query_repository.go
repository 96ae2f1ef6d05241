package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

type QueryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Query
	byToken map[string]string // share token -> query id
}

func NewQueryRepository() *QueryRepository {
	return &QueryRepository{
		byID:    make(map[string]*domain.Query),
		byToken: make(map[string]string),
	}
}

func cloneQuery(q *domain.Query) *domain.Query {
	out := *q
	out.Tags = append([]string{}, q.Tags...)
	return &out
}

func (r *QueryRepository) Create(_ context.Context, q *domain.Query) (*domain.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneQuery(q)
	stored.ID = uuid.NewString()
	r.byID[stored.ID] = stored
	if stored.IsPublic && stored.ShareToken != "" {
		r.byToken[stored.ShareToken] = stored.ID
	}
	return cloneQuery(stored), nil
}

// owned must be called with r.mu held.
func (r *QueryRepository) owned(ownerID, id string) (*domain.Query, bool) {
	q, ok := r.byID[id]
	if !ok || q.OwnerID != ownerID {
		return nil, false
	}
	return q, true
}

func (r *QueryRepository) FindByID(_ context.Context, ownerID, id string) (*domain.Query, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.owned(ownerID, id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	return cloneQuery(q), nil
}

func (r *QueryRepository) ListByOwner(_ context.Context, ownerID string) ([]*domain.Query, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Query{}
	for _, q := range r.byID {
		if q.OwnerID == ownerID {
			out = append(out, cloneQuery(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *QueryRepository) ListTags(_ context.Context, ownerID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, q := range r.byID {
		if q.OwnerID != ownerID {
			continue
		}
		for _, t := range q.Tags {
			set[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func (r *QueryRepository) Update(_ context.Context, ownerID, id, title, text string, tags []string) (*domain.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.owned(ownerID, id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	q.Title = title
	q.Text = text
	q.Tags = append([]string{}, tags...)
	return cloneQuery(q), nil
}

func (r *QueryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.owned(ownerID, id)
	if !ok {
		return domain.ErrQueryNotFound
	}
	if q.ShareToken != "" {
		delete(r.byToken, q.ShareToken)
	}
	delete(r.byID, id)
	return nil
}

func (r *QueryRepository) MarkPublic(_ context.Context, ownerID, id, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.owned(ownerID, id)
	if !ok {
		return "", domain.ErrQueryNotFound
	}
	if q.IsPublic {
		return q.ShareToken, nil
	}
	if _, taken := r.byToken[token]; taken {
		return "", domain.ErrShareTokenTaken
	}

	q.IsPublic = true
	q.ShareToken = token
	r.byToken[token] = q.ID
	return token, nil
}

func (r *QueryRepository) FindByShareToken(_ context.Context, token string) (*domain.Query, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	q := r.byID[id]
	if q == nil || !q.IsPublic {
		return nil, domain.ErrQueryNotFound
	}
	return cloneQuery(q), nil
}
