package profile

import (
	"context"
	"fmt"
	"sync"
)

// memory is an in-memory Store, for tests and for running without a database.
type memory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{profiles: make(map[string]Profile)}
}

func (m *memory) Load(ctx context.Context, id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return &p, nil
}

func (m *memory) Save(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *memory) UpdateScore(ctx context.Context, id string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p.Score = score
	m.profiles[id] = p
	return nil
}

func (m *memory) SetBlocked(ctx context.Context, id string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p.IsBlocked = blocked
	m.profiles[id] = p
	return nil
}
