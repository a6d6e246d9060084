package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a Store local to one process.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemory() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, time.Minute)}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	str, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return str, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exp, ok := s.cache.GetWithExpiration(key)
	if !ok {
		s.cache.Set(key, int64(1), ttl)
		return 1, nil
	}

	n, _ := v.(int64)
	n++
	remaining := cache.NoExpiration
	if !exp.IsZero() {
		remaining = time.Until(exp)
		if remaining <= 0 {
			s.cache.Set(key, int64(1), ttl)
			return 1, nil
		}
	}
	s.cache.Set(key, n, remaining)
	return n, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.cache.Delete(k)
	}
	return nil
}
