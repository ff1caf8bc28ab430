package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mermaid:document:"

type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to addr and pings it once.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Load(ctx context.Context, userID string) (Document, error) {
	if err := validateUserID(userID); err != nil {
		return Document{}, err
	}
	data, err := s.rdb.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("redis get: %w", err)
	}
	return decodeDocument(data)
}

func (s *RedisStore) Save(ctx context.Context, doc Document) error {
	doc, err := stamp(doc)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+doc.UserID, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
