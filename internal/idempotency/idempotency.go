// Package idempotency remembers client-supplied request keys so a retried create
// returns the record made by the first attempt.
package idempotency

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// pending marks a key whose first request has not finished yet.
const pending = "0"

// Store reserves keys. Reserve returns reserved=true to exactly one caller per key;
// later callers get the completed id, or 0 while the first request is still running.
type Store interface {
	Reserve(ctx context.Context, key string) (existingID int64, reserved bool, err error)
	Complete(ctx context.Context, key string, id int64) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps reservations in Redis with SETNX and a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore keys entries under prefix and expires them after ttl.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "hrledger:idem:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Reserve claims key with SETNX. If it is taken, the stored record id is returned (0 while pending).
func (s *RedisStore) Reserve(ctx context.Context, key string) (int64, bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, pending, s.ttl).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.client.SetNX(ctx, s.prefix+key, pending, s.ttl).Result()
		return 0, ok, err
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// Complete points key at the created record.
func (s *RedisStore) Complete(ctx context.Context, key string, id int64) error {
	return s.client.Set(ctx, s.prefix+key, strconv.FormatInt(id, 10), s.ttl).Err()
}

// Release forgets key so a retry can reserve it again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// MemoryStore is the in-process variant used in tests and with QUEUE_BACKEND=memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	id      int64
	expires time.Time
}

// NewMemoryStore returns a process-local store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// Reserve claims key unless a live entry holds it.
func (s *MemoryStore) Reserve(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return e.id, false, nil
	}
	s.entries[key] = entry{expires: now.Add(s.ttl)}
	return 0, true, nil
}

// Complete points key at the created record.
func (s *MemoryStore) Complete(_ context.Context, key string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{id: id, expires: s.now().Add(s.ttl)}
	return nil
}

// Release forgets key.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
