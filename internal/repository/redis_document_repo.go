package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisDocumentRepository struct {
	client *redis.Client
}

// NewRedisDocumentRepository constructs a Redis-backed document store.
// Documents do not expire; the ledger lives until an explicit reset.
func NewRedisDocumentRepository(client *redis.Client) DocumentRepository {
	return &redisDocumentRepository{client: client}
}

func (r *redisDocumentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *redisDocumentRepository) Put(ctx context.Context, key string, payload []byte) error {
	return r.client.Set(ctx, key, payload, 0).Err()
}

func (r *redisDocumentRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
