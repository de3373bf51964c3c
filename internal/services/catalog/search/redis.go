package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// DefaultRedisKey is where the entity index is cached.
const DefaultRedisKey = "lama:search:entities"

// NewRedisIndex returns an index cached under key in redis, shared by every
// process pointing at the same server. A zero ttl keeps the entry until it
// is invalidated.
func NewRedisIndex(source storage.DocumentReader, client *redis.Client, key string, ttl time.Duration, logger logrus.FieldLogger) *Index {
	if client == nil {
		panic("search.NewRedisIndex: redis client is nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl < 0 {
		ttl = 0
	}
	return newIndex(source, &redisBackend{client: client, key: key, ttl: ttl}, logger)
}

type redisBackend struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// generationKey counts invalidations. It never expires.
func (r *redisBackend) generationKey() string { return r.key + ":generation" }

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *redisBackend) generation(ctx context.Context, c getter) (int64, error) {
	n, err := c.Get(ctx, r.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *redisBackend) load(ctx context.Context) ([]Entry, int64, bool) {
	generation, err := r.generation(ctx, r.client)
	if err != nil {
		return nil, -1, false
	}
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// Fall back to a rebuild without failing the lookup.
			_ = r.client.Del(ctx, r.key).Err()
		}
		return nil, generation, false
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		_ = r.client.Del(ctx, r.key).Err()
		return nil, generation, false
	}
	return entries, generation, true
}

// save stores entries only while the generation still matches, watching it
// so that a concurrent drop aborts the write.
func (r *redisBackend) save(ctx context.Context, entries []Entry, generation int64) error {
	if generation < 0 {
		return errStaleBuild
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleBuild
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, r.ttl)
			return nil
		})
		return err
	}, r.generationKey())
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleBuild
	}
	return err
}

func (r *redisBackend) drop(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.generationKey())
		pipe.Del(ctx, r.key)
		return nil
	})
	return err
}
