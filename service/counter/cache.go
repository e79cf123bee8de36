package counter

import (
	"sync"

	"github.com/tapglue/visits/platform/cache"
)

const cacheNamespace = "counter"

type cacheService struct {
	countsCache cache.CountService
	next        Service

	mu    sync.Mutex
	names map[string]struct{}
}

// CacheServiceMiddleware adds caching capabilities to the Service by using
// read-through and write-through methods. The next Service stays the source of
// truth, failing cache operations fall through to it.
func CacheServiceMiddleware(countsCache cache.CountService) ServiceMiddleware {
	return func(next Service) Service {
		return &cacheService{
			countsCache: countsCache,
			names:       map[string]struct{}{},
			next:        next,
		}
	}
}

func (s *cacheService) Get(name string) (uint64, error) {
	value, err := s.countsCache.Get(cacheNamespace, name)
	if err == nil {
		return value, nil
	}

	value, err = s.next.Get(name)
	if err != nil {
		return 0, err
	}

	s.put(name, value)

	return value, nil
}

func (s *cacheService) Incr(name string) (uint64, error) {
	value, err := s.next.Incr(name)
	if err != nil {
		_ = s.countsCache.Del(cacheNamespace, name)
		return 0, err
	}

	s.put(name, value)

	return value, nil
}

func (s *cacheService) Set(name string, value uint64) error {
	if err := s.next.Set(name, value); err != nil {
		_ = s.countsCache.Del(cacheNamespace, name)
		return err
	}

	s.put(name, value)

	return nil
}

func (s *cacheService) Setup() error {
	return s.next.Setup()
}

func (s *cacheService) Teardown() error {
	s.mu.Lock()
	for name := range s.names {
		_ = s.countsCache.Del(cacheNamespace, name)
	}
	s.names = map[string]struct{}{}
	s.mu.Unlock()

	return s.next.Teardown()
}

func (s *cacheService) put(name string, value uint64) {
	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()

	// A stale entry would outlive the write, drop it instead.
	if err := s.countsCache.Set(cacheNamespace, name, value); err != nil {
		_ = s.countsCache.Del(cacheNamespace, name)
	}
}
