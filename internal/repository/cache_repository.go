package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// ErrCacheMiss ключа нет в кэше
var ErrCacheMiss = errors.New("cache miss")

// LinkCache read-through кэш ссылки вместе с приложением по слагу.
// Ссылки неизменяемы, поэтому инвалидация не нужна, только TTL.
type LinkCache interface {
	Get(ctx context.Context, slug string) (*models.TrackingLink, error)
	Set(ctx context.Context, link *models.TrackingLink, ttl time.Duration) error
	Delete(ctx context.Context, slug string) error
}

type linkCache struct {
	redis *RedisDB
}

func NewLinkCache(redis *RedisDB) LinkCache {
	return &linkCache{redis: redis}
}

func (r *linkCache) Get(ctx context.Context, slug string) (*models.TrackingLink, error) {
	data, err := r.redis.Client.Get(ctx, r.key(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var link models.TrackingLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	if link.App == nil {
		return nil, ErrCacheMiss
	}

	return &link, nil
}

func (r *linkCache) Set(ctx context.Context, link *models.TrackingLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(link.Slug), data, ttl).Err()
}

func (r *linkCache) Delete(ctx context.Context, slug string) error {
	return r.redis.Client.Del(ctx, r.key(slug)).Err()
}

func (r *linkCache) key(slug string) string {
	return "link:slug:" + slug
}
