package counter

import "sync"

type memService struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// MemService returns a memory based Service implementation.
func MemService() Service {
	return &memService{
		counters: map[string]uint64{},
	}
}

func (s *memService) Get(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.counters[name]
	if !ok {
		return 0, wrapError(ErrNotFound, "%s", name)
	}

	return value, nil
}

func (s *memService) Incr(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name]++

	return s.counters[name], nil
}

func (s *memService) Set(name string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name] = value

	return nil
}

func (s *memService) Setup() error {
	return nil
}

func (s *memService) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = map[string]uint64{}

	return nil
}
