package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each object in a hash holding its bytes and version.
// Put runs under WATCH, so a concurrent writer aborts the transaction.
type RedisStore struct {
	client    redis.UniversalClient // works with both single and cluster
	namespace string
}

// NewRedisStore returns a Store whose keys are prefixed with namespace.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

const (
	fieldData    = "data"
	fieldVersion = "version"
)

func (s *RedisStore) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *RedisStore) Stat(ctx context.Context, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.key(key), fieldVersion).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("objectstore.RedisStore.Stat %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("objectstore.RedisStore.Stat %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Object, error) {
	vals, err := s.client.HMGet(ctx, s.key(key), fieldData, fieldVersion).Result()
	if err != nil {
		return Object{}, fmt.Errorf("objectstore.RedisStore.Get %q: %w", key, err)
	}
	data, okData := vals[0].(string)
	version, okVersion := vals[1].(string)
	if !okData || !okVersion {
		return Object{}, fmt.Errorf("objectstore.RedisStore.Get %q: %w", key, ErrNotFound)
	}
	return Object{Data: []byte(data), Version: version}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte, ifVersion string) (string, error) {
	k := s.key(key)
	next := uuid.NewString()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldVersion).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != ifVersion {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, k, fieldData, data, fieldVersion, next)
			return nil
		})
		return err
	}, k)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return "", fmt.Errorf("objectstore.RedisStore.Put %q: %w", key, ErrVersionConflict)
	case err != nil:
		return "", fmt.Errorf("objectstore.RedisStore.Put %q: %w", key, err)
	}
	return next, nil
}
