package storage

import (
	"context"
	"sync"

	"poshub-api/domain"
)

// MemoryStore keeps orders in process memory. Inserts become visible to other
// callers atomically; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	ids    []string
}

// NewMemoryStore creates an empty order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]domain.Order)}
}

// Create inserts a new order. The ID must not already be present.
func (s *MemoryStore) Create(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	s.orders[order.ID] = order
	s.ids = append(s.ids, order.ID)
	return nil
}

// Get returns the order with the exact given ID, or ErrOrderNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// List returns all stored orders in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ids))
	for _, id := range s.ids {
		orders = append(orders, s.orders[id])
	}
	return orders, nil
}

// Len reports the number of stored orders.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
