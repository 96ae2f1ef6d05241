package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/querynotes/querynotes-api/internal/core/domain"
	"github.com/querynotes/querynotes-api/internal/infrastructure/lazy"
)

// ShareCache keeps public query views in Redis.
// Key format: share:<token>
type ShareCache struct {
	client *lazy.Handle[*redis.Client]
}

// NewShareCache wraps a lazily connected Redis client. Nothing is dialled
// until the first cache call.
func NewShareCache(client *lazy.Handle[*redis.Client]) *ShareCache {
	return &ShareCache{client: client}
}

func (c *ShareCache) Get(ctx context.Context, token string) (*domain.PublicQuery, bool, error) {
	rdb, err := c.client.Get(ctx)
	if err != nil {
		return nil, false, err
	}

	data, err := rdb.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("share cache get: %w", err)
	}

	var view domain.PublicQuery
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false, fmt.Errorf("share cache decode: %w", err)
	}
	return &view, true, nil
}

func (c *ShareCache) Set(ctx context.Context, token string, view *domain.PublicQuery, ttl time.Duration) error {
	rdb, err := c.client.Get(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("share cache encode: %w", err)
	}
	return rdb.Set(ctx, c.key(token), data, ttl).Err()
}

func (c *ShareCache) Invalidate(ctx context.Context, token string) error {
	rdb, err := c.client.Get(ctx)
	if err != nil {
		return err
	}
	return rdb.Del(ctx, c.key(token)).Err()
}

func (c *ShareCache) key(token string) string {
	return "share:" + token
}
