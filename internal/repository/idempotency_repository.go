package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredResponse закэшированный ответ на запрос с Idempotency-Key
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type IdempotencyStore interface {
	Get(ctx context.Context, scope, key string) (*StoredResponse, error)
	Save(ctx context.Context, scope, key string, resp *StoredResponse, ttl time.Duration) error
}

type idempotencyStore struct {
	redis *RedisDB
}

func NewIdempotencyStore(redis *RedisDB) IdempotencyStore {
	return &idempotencyStore{redis: redis}
}

// Get возвращает ErrCacheMiss, если ответа ещё нет
func (s *idempotencyStore) Get(ctx context.Context, scope, key string) (*StoredResponse, error) {
	data, err := s.redis.Client.Get(ctx, s.key(scope, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var resp StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored response: %w", err)
	}
	return &resp, nil
}

// Save пишет только первый ответ: повторные сохранения по тому же ключу игнорируются
func (s *idempotencyStore) Save(ctx context.Context, scope, key string, resp *StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal stored response: %w", err)
	}
	return s.redis.Client.SetNX(ctx, s.key(scope, key), data, ttl).Err()
}

func (s *idempotencyStore) key(scope, key string) string {
	return "idem:" + scope + ":" + key
}
