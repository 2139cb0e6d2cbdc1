package repository

import (
	"sync"

	"rangebot-backend/internal/domain"
)

// InMemoryStatusRepository holds the latest market status snapshot for the
// HTTP and WebSocket delivery layers.
type InMemoryStatusRepository struct {
	mu       sync.RWMutex
	snapshot domain.StatusSnapshot
}

func NewInMemoryStatusRepository() *InMemoryStatusRepository {
	return &InMemoryStatusRepository{}
}

func (r *InMemoryStatusRepository) Save(snapshot domain.StatusSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snapshot
}

func (r *InMemoryStatusRepository) Latest() domain.StatusSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// compile-time check
var _ domain.StatusRepository = (*InMemoryStatusRepository)(nil)
