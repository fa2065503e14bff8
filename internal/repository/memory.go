package repository

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore - встроенная реализация Store для локального запуска без Redis
// и для юнит-тестов. Семантика операций повторяет Redis, включая истечение
// ключей (проверяется лениво при доступе)
type MemoryStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	values  map[string]string
	expires map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:  make(map[string]map[string]string),
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

// вызывающий должен удерживать mu
func (s *MemoryStore) purgeExpiredLocked(key string) {
	if exp, ok := s.expires[key]; ok && time.Now().After(exp) {
		delete(s.hashes, key)
		delete(s.values, key)
		delete(s.expires, key)
	}
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.values[key]
	return ok, nil
}

func (s *MemoryStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HashGet(ctx context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	return s.hashes[key][field], nil
}

func (s *MemoryStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *MemoryStore) HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemoryStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	if _, ok := s.hashes[key]; ok {
		return false, nil
	}
	s.values[key] = value
	if ttl > 0 {
		s.expires[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	delete(s.values, key)
	delete(s.expires, key)
	return nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(key)
	s.expires[key] = time.Now().Add(ttl)
	return nil
}
