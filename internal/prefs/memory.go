package prefs

import "sync"

// MemoryStore keeps preferences in process memory. It backs deployments
// with no database configured; values do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	floats map[string]float64
	ints   map[string]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		floats: make(map[string]float64),
		ints:   make(map[string]int),
	}
}

// Open is a no-op; the store is ready on construction.
func (s *MemoryStore) Open() error { return nil }

func (s *MemoryStore) GetFloat(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.floats[key]
	return v, ok
}

func (s *MemoryStore) SetFloat(key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floats[key] = value
	return nil
}

func (s *MemoryStore) GetInt(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.ints[key]
	return v, ok
}

func (s *MemoryStore) SetInt(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints[key] = value
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
