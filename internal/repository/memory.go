package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
)

type memoryEntry struct {
	state     models.ViewState
	expiresAt time.Time
}

type windowCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryStateRepository keeps view state in process memory.
type MemoryStateRepository struct {
	mu       sync.Mutex
	states   map[string]memoryEntry
	counters map[string]*windowCounter
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		states:   make(map[string]memoryEntry),
		counters: make(map[string]*windowCounter),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *MemoryStateRepository) GetState(_ context.Context, sessionID string) (*models.ViewState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.states[sessionID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(e.expiresAt) {
		delete(r.states, sessionID)
		return nil, nil
	}
	state := e.state
	return &state, nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, state *models.ViewState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.SessionID] = memoryEntry{state: *state, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, sessionID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	c, ok := r.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &windowCounter{expiresAt: now.Add(window)}
		r.counters[key] = c
	}
	c.count++
	return c.count <= limit, nil
}
