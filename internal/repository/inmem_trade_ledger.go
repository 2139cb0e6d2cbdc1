package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"rangebot-backend/internal/domain"
)

// InMemoryTradeLedger implements domain.TradeLedger without persistence,
// for tests and ledger-less runs.
type InMemoryTradeLedger struct {
	mu        sync.RWMutex
	orders    []*domain.Order
	positions map[string]*domain.Position
}

func NewInMemoryTradeLedger() *InMemoryTradeLedger {
	return &InMemoryTradeLedger{
		positions: make(map[string]*domain.Position),
	}
}

func (r *InMemoryTradeLedger) RecordOrder(_ context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := *order
	r.orders = append(r.orders, &snapshot)
	return nil
}

func (r *InMemoryTradeLedger) RecordPosition(_ context.Context, position *domain.Position) error {
	if position == nil {
		return errors.New("nil position")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := *position
	r.positions[position.ID] = &snapshot
	return nil
}

func (r *InMemoryTradeLedger) UpdatePosition(_ context.Context, position *domain.Position) error {
	if position == nil {
		return errors.New("nil position")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := *position
	r.positions[position.ID] = &snapshot
	return nil
}

func (r *InMemoryTradeLedger) PositionHistory(_ context.Context, fromTime time.Time) ([]*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	filtered := make([]*domain.Position, 0)
	for _, p := range r.positions {
		if p.Status == domain.PositionClosed && p.ExitTime != nil && !p.ExitTime.Before(fromTime) {
			snapshot := *p
			filtered = append(filtered, &snapshot)
		}
	}
	return filtered, nil
}

// Orders returns all recorded orders, oldest first.
func (r *InMemoryTradeLedger) Orders() []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// compile-time check
var _ domain.TradeLedger = (*InMemoryTradeLedger)(nil)
