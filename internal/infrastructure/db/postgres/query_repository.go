package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

// selectQueries aggregates tags in their stored order. Callers append a
// WHERE clause followed by groupAndOrder.
const selectQueries = `
SELECT q.id::text, q.user_id::text, q.title, q.text, q.is_public,
       COALESCE(q.share_id, ''), q.created_at,
       COALESCE(array_agg(t.tag ORDER BY t.position) FILTER (WHERE t.tag IS NOT NULL), '{}')
FROM queries q
LEFT JOIN query_tags t ON t.query_id = q.id
`

const groupAndOrder = `
GROUP BY q.id
ORDER BY q.created_at DESC, q.id DESC`

// QueryRepository keeps tags in query_tags; every write that touches both
// tables runs in one transaction.
type QueryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryRepository(pool *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{pool: pool}
}

func scanQuery(row pgx.Row) (*domain.Query, error) {
	var q domain.Query
	if err := row.Scan(&q.ID, &q.OwnerID, &q.Title, &q.Text, &q.IsPublic, &q.ShareToken, &q.CreatedAt, &q.Tags); err != nil {
		return nil, err
	}
	q.CreatedAt = q.CreatedAt.UTC()
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return &q, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// validID rejects ids Postgres would refuse to cast, so they surface as a
// plain not-found instead of a driver error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func replaceTags(ctx context.Context, db querier, queryID string, tags []string) error {
	if _, err := db.Exec(ctx, `DELETE FROM query_tags WHERE query_id = $1`, queryID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`INSERT INTO query_tags (query_id, tag, position)
		 SELECT $1::uuid, t.tag, t.ord FROM unnest($2::text[]) WITH ORDINALITY AS t(tag, ord)`,
		queryID, tags,
	)
	if err != nil {
		return fmt.Errorf("insert tags: %w", err)
	}
	return nil
}

func findOwned(ctx context.Context, db querier, ownerID, id string) (*domain.Query, error) {
	q, err := scanQuery(db.QueryRow(ctx,
		selectQueries+`WHERE q.id = $1 AND q.user_id = $2`+groupAndOrder, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return q, nil
}

func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var created *domain.Query
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`INSERT INTO queries (user_id, title, text, is_public, share_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id::text`,
			q.OwnerID, q.Title, q.Text, q.IsPublic, nullable(q.ShareToken), q.CreatedAt.UTC(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert query: %w", err)
		}
		if err := replaceTags(ctx, tx, id, q.Tags); err != nil {
			return err
		}
		created, err = findOwned(ctx, tx, q.OwnerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *QueryRepository) FindByID(ctx context.Context, ownerID, id string) (*domain.Query, error) {
	if !validID(id) {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return findOwned(ctx, r.pool, ownerID, id)
}

// ListByOwner returns the owner's queries, newest first.
func (r *QueryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, selectQueries+`WHERE q.user_id = $1`+groupAndOrder, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Query, error) {
		return scanQuery(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan queries: %w", err)
	}
	return out, nil
}

func (r *QueryRepository) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT t.tag
		 FROM query_tags t
		 JOIN queries q ON q.id = t.query_id
		 WHERE q.user_id = $1
		 ORDER BY t.tag`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	return tags, nil
}

func (r *QueryRepository) Update(ctx context.Context, ownerID, id, title, text string, tags []string) (*domain.Query, error) {
	if !validID(id) {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var updated *domain.Query
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE queries SET title = $3, text = $4 WHERE id = $1 AND user_id = $2`,
			id, ownerID, title, text,
		)
		if err != nil {
			return fmt.Errorf("update query: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrQueryNotFound
		}
		if err := replaceTags(ctx, tx, id, tags); err != nil {
			return err
		}
		updated, err = findOwned(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *QueryRepository) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// query_tags rows go with the ON DELETE CASCADE.
	tag, err := r.pool.Exec(ctx, `DELETE FROM queries WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

func (r *QueryRepository) MarkPublic(ctx context.Context, ownerID, id, token string) (string, error) {
	if !validID(id) {
		return "", domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE queries SET is_public = TRUE, share_id = $3
		 WHERE id = $1 AND user_id = $2 AND NOT is_public`,
		id, ownerID, token,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrShareTokenTaken
		}
		return "", fmt.Errorf("share query: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return token, nil
	}

	var current string
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(share_id, '') FROM queries WHERE id = $1 AND user_id = $2 AND is_public`,
		id, ownerID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrQueryNotFound
		}
		return "", fmt.Errorf("read share id: %w", err)
	}
	return current, nil
}

func (r *QueryRepository) FindByShareToken(ctx context.Context, token string) (*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q, err := scanQuery(r.pool.QueryRow(ctx,
		selectQueries+`WHERE q.share_id = $1 AND q.is_public`+groupAndOrder, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find shared query: %w", err)
	}
	return q, nil
}
