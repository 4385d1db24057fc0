package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobIndexKey = "shortforge:jobs"

// RedisStore persists jobs as JSON records so state survives a
// restart. A set holds the live IDs for listing.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to addr and pings it once so a bad address
// fails at startup, not on the first job.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func jobKey(id string) string { return "shortforge:job:" + id }

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), b, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("job already exists")
	}
	return s.rdb.SAdd(ctx, jobIndexKey, job.ID).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.rdb.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// Update reads, mutates and writes back under a watch so concurrent
// writers cannot clobber each other.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	var updated *Job
	key := jobKey(id)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", id, err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		b, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &job
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.rdb.SRem(ctx, jobIndexKey, id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]*Job, error) {
	ids, err := s.rdb.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// record expired; drop the stale index entry
			_ = s.rdb.SRem(ctx, jobIndexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
