package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"apartment-valuation-service/internal/core/domain"
)

// MemoryStore is an in-memory ObjectStore.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, body []byte) error {
	cp := make([]byte, len(body))
	copy(cp, body)
	s.mu.Lock()
	s.objects[key] = cp
	s.mu.Unlock()
	return nil
}

// Get fails once ctx is done, like the network-backed stores.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	return cp, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys lists every stored key.
func (s *MemoryStore) Keys() []string {
	keys, _ := s.List(context.Background(), "")
	return keys
}

// MemoryPointerRepo is an in-memory PointerRepository with real version checks.
type MemoryPointerRepo struct {
	mu      sync.Mutex
	current *domain.ProductionPointer
}

func (r *MemoryPointerRepo) Get(ctx context.Context) (*domain.ProductionPointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, domain.ErrNoProductionPointer
	}
	cp := *r.current
	return &cp, nil
}

func (r *MemoryPointerRepo) CompareAndSwap(_ context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var version int64
	if r.current != nil {
		version = r.current.Version
	}
	if version != expectedVersion {
		return nil, domain.ErrPromotionConflict
	}
	stored := *next
	stored.Version = version + 1
	r.current = &stored
	cp := stored
	return &cp, nil
}
