package memory

import (
	"context"
	"sync"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	orders  []*domain.OrderRecord
	matches []*domain.MatchRecord
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// RecordOrder appends a terminal order.
func (s *AuditStore) RecordOrder(_ context.Context, _ string, o *domain.OrderRecord) error {
	if o == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *o
	s.orders = append(s.orders, &copy)
	return nil
}

// RecordMatch appends match records.
func (s *AuditStore) RecordMatch(_ context.Context, records []*domain.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		copy := *r
		s.matches = append(s.matches, &copy)
	}
	return nil
}

// Orders returns the recorded orders.
func (s *AuditStore) Orders() []*domain.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.OrderRecord(nil), s.orders...)
}

// Matches returns the recorded match records.
func (s *AuditStore) Matches() []*domain.MatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.MatchRecord(nil), s.matches...)
}

var _ storage.AuditStore = (*AuditStore)(nil)
