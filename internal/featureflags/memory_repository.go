package featureflags

import (
	"context"
	"sync"
)

// InMemoryRepository keeps flags in process memory.
// It backs STORE_BACKEND=memory and the tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{flags: make(map[string]*Flag)}
}

// NewInMemoryRepositoryWithFlags creates a repository holding copies of flags.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	repo := NewInMemoryRepository()
	for k, v := range flags {
		cpy := *v
		repo.flags[k] = &cpy
	}
	return repo
}

// GetFlag retrieves a single feature flag by key.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cpy := *flag
	return &cpy, nil
}

// GetAllFlags retrieves all stored feature flags.
func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		cpy := *v
		result[k] = &cpy
	}
	return result, nil
}

// SetFlags creates or updates flags.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, flag := range flags {
		cpy := *flag
		r.flags[flag.Key] = &cpy
	}
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
