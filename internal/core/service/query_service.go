package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/querynotes/querynotes-api/internal/core/domain"
	"github.com/querynotes/querynotes-api/internal/core/ports"
	"github.com/querynotes/querynotes-api/internal/pkg/metrics"
)

const (
	maxShareAttempts     = 3
	defaultShareCacheTTL = 10 * time.Minute
)

// QueryService implements the owner-scoped query use cases. The owner filter
// is applied by every repository call, so a handler cannot skip it.
type QueryService struct {
	repo     ports.QueryRepository
	cache    ports.ShareCache // optional
	cacheTTL time.Duration
	logger   zerolog.Logger
	newToken func() (string, error)
	now      func() time.Time
}

// NewQueryService builds a QueryService. cache may be nil.
func NewQueryService(repo ports.QueryRepository, cache ports.ShareCache, cacheTTL time.Duration, logger zerolog.Logger) *QueryService {
	if cacheTTL <= 0 {
		cacheTTL = defaultShareCacheTTL
	}
	return &QueryService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		newToken: generateShareToken,
		now:      time.Now,
	}
}

func (s *QueryService) Create(ctx context.Context, ownerID string, in ports.QueryInput) (*domain.Query, error) {
	title, text, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	q := &domain.Query{
		OwnerID:   ownerID,
		Title:     title,
		Text:      text,
		Tags:      domain.NormalizeTags(in.Tags),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	created, err := s.repo.Create(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to create query")
		return nil, err
	}

	metrics.QueriesCreatedTotal.Inc()
	s.logger.Info().Str("query_id", created.ID).Str("owner_id", ownerID).Msg("query created")
	return created, nil
}

func (s *QueryService) Get(ctx context.Context, ownerID, id string) (*domain.Query, error) {
	return s.repo.FindByID(ctx, ownerID, id)
}

// List returns the owner's queries, newest first.
func (s *QueryService) List(ctx context.Context, ownerID string) ([]*domain.Query, error) {
	queries, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if queries == nil {
		queries = []*domain.Query{}
	}
	return queries, nil
}

func (s *QueryService) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	tags, err := s.repo.ListTags(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// Update replaces title, text and tags. Ownership, creation time and share
// state are never touched.
func (s *QueryService) Update(ctx context.Context, ownerID, id string, in ports.QueryInput) (*domain.Query, error) {
	title, text, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, ownerID, id, title, text, domain.NormalizeTags(in.Tags))
	if err != nil {
		return nil, err
	}

	if updated.IsPublic {
		s.invalidate(ctx, updated.ShareToken)
	}
	return updated, nil
}

func (s *QueryService) Delete(ctx context.Context, ownerID, id string) error {
	existing, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	if existing.IsPublic {
		s.invalidate(ctx, existing.ShareToken)
	}
	s.logger.Info().Str("query_id", id).Str("owner_id", ownerID).Msg("query deleted")
	return nil
}

// Share makes the query public and returns its share token. A query that is
// already public keeps its token and nothing is written.
func (s *QueryService) Share(ctx context.Context, ownerID, id string) (string, error) {
	existing, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if existing.IsPublic {
		metrics.SharesTotal.WithLabelValues("reused").Inc()
		return existing.ShareToken, nil
	}

	for attempt := 1; attempt <= maxShareAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", fmt.Errorf("generate share token: %w", err)
		}

		got, err := s.repo.MarkPublic(ctx, ownerID, id, token)
		if errors.Is(err, domain.ErrShareTokenTaken) {
			metrics.ShareTokenCollisionsTotal.Inc()
			s.logger.Warn().Str("query_id", id).Int("attempt", attempt).Msg("share token collision, retrying")
			continue
		}
		if err != nil {
			return "", err
		}

		result := "minted"
		if got != token {
			result = "reused"
		}
		metrics.SharesTotal.WithLabelValues(result).Inc()
		s.logger.Info().Str("query_id", id).Str("owner_id", ownerID).Str("result", result).Msg("query shared")
		return got, nil
	}

	return "", fmt.Errorf("share query %s after %d attempts: %w", id, maxShareAttempts, domain.ErrShareTokenTaken)
}

// GetPublic resolves a share token to the anonymous view. Unknown tokens and
// private queries both yield domain.ErrQueryNotFound.
func (s *QueryService) GetPublic(ctx context.Context, token string) (*domain.PublicQuery, error) {
	if token == "" {
		return nil, domain.ErrQueryNotFound
	}

	if s.cache != nil {
		view, ok, err := s.cache.Get(ctx, token)
		switch {
		case err != nil:
			metrics.ShareCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Msg("share cache read failed, falling back to store")
		case ok:
			metrics.ShareCacheTotal.WithLabelValues("hit").Inc()
			metrics.PublicLookupsTotal.WithLabelValues("found").Inc()
			return view, nil
		default:
			metrics.ShareCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	q, err := s.repo.FindByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrQueryNotFound) {
			metrics.PublicLookupsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	if !q.IsPublic {
		metrics.PublicLookupsTotal.WithLabelValues("not_found").Inc()
		return nil, domain.ErrQueryNotFound
	}

	view := q.Public()
	if s.cache != nil {
		s.fill(ctx, token, view)
	}

	metrics.PublicLookupsTotal.WithLabelValues("found").Inc()
	return view, nil
}

// fill caches view, then reads the row again. Update and Delete write the
// store before invalidating, so a write that landed between the first read
// and Set is seen here and the entry is dropped; a later write invalidates
// after Set.
func (s *QueryService) fill(ctx context.Context, token string, view *domain.PublicQuery) {
	if err := s.cache.Set(ctx, token, view, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("failed to populate share cache")
		return
	}

	current, err := s.repo.FindByShareToken(ctx, token)
	if err == nil && current.IsPublic && sameView(current.Public(), view) {
		return
	}
	if err != nil && !errors.Is(err, domain.ErrQueryNotFound) {
		s.logger.Warn().Err(err).Msg("share cache recheck failed, dropping entry")
	}
	s.invalidate(ctx, token)
}

func sameView(a, b *domain.PublicQuery) bool {
	return a.Title == b.Title &&
		a.Text == b.Text &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		slices.Equal(a.Tags, b.Tags)
}

func (s *QueryService) invalidate(ctx context.Context, token string) {
	if s.cache == nil || token == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate share cache entry")
	}
}

func validateInput(in ports.QueryInput) (string, string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Text) == "" {
		return "", "", domain.ValidationError("title and text are required")
	}
	// Postgres TEXT cannot hold NUL; reject it for every store alike.
	if strings.ContainsRune(title, 0) || strings.ContainsRune(in.Text, 0) ||
		slices.ContainsFunc(in.Tags, func(t string) bool { return strings.ContainsRune(t, 0) }) {
		return "", "", domain.ValidationError("title, text and tags must not contain NUL characters")
	}
	// Text keeps its leading indentation; snippets are usually code.
	return title, in.Text, nil
}

// generateShareToken returns 128 random bits, hex encoded.
func generateShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
