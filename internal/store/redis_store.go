package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per kind, field = name, value = JSON Record.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

var _ PickleStore = (*RedisStore)(nil)

// NewRedisStore wraps rdb. Keys are "<prefix>:pickles:<kind>".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "olmkit"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(kind Kind) string {
	return s.prefix + ":pickles:" + string(kind)
}

func (s *RedisStore) SavePickle(ctx context.Context, kind Kind, name, pickle string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	b, err := json.Marshal(Record{Kind: kind, Name: name, Pickle: pickle, UpdatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key(kind), name, b).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadPickle(ctx context.Context, kind Kind, name string) (Record, error) {
	if err := validate(kind, name); err != nil {
		return Record{}, err
	}
	b, err := s.rdb.HGet(ctx, s.key(kind), name).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis hget: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) DeletePickle(ctx context.Context, kind Kind, name string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	n, err := s.rdb.HDel(ctx, s.key(kind), name).Result()
	if err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ListPickles(ctx context.Context, kind Kind) ([]string, error) {
	if err := validate(kind, ""); err != nil {
		return nil, err
	}
	names, err := s.rdb.HKeys(ctx, s.key(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
