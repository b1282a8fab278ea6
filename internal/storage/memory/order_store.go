package memory

import (
	"context"
	"sort"
	"sync"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OrderRecord // keyed by order_id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{data: make(map[string]*domain.OrderRecord)}
}

// Insert adds a terminal order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.OrderRecord) error {
	if o == nil || o.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OrderID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *o
	s.data[o.OrderID] = &copy
	return nil
}

// ListBySymbol retrieves orders of a symbol, ordered by insert time ASC.
func (s *OrderStore) ListBySymbol(_ context.Context, symbol string) ([]*domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderRecord
	for _, o := range s.data {
		if o.Symbol == symbol {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].InsertTime.Before(result[j].InsertTime)
	})
	return result, nil
}

var _ storage.OrderStore = (*OrderStore)(nil)
