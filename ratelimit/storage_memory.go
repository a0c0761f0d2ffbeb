package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
)

// MemoryStorage is a process local fiber.Storage backed by go-cache
type MemoryStorage struct {
	cache *cache.Cache
}

var _ fiber.Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(cleanupInterval time.Duration) *MemoryStorage {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryStorage{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	raw, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	val, _ := raw.([]byte)
	return val, nil
}

func (s *MemoryStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	buf := make([]byte, len(val))
	copy(buf, val)
	s.cache.Set(key, buf, exp)
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStorage) Reset() error {
	s.cache.Flush()
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
