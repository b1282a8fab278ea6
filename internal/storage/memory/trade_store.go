package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStatusStore and
// storage.PositionStore. One mutex covers all three tables so multi-entity
// mutations are atomic.
type TradeStore struct {
	mu        sync.RWMutex
	statuses  map[domain.StatusKey]*domain.TradeStatus
	positions map[string]*domain.OpenPositionRecord // keyed by position_id
	closes    map[string]*domain.CloseVolumeRecord  // keyed by close_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		statuses:  make(map[domain.StatusKey]*domain.TradeStatus),
		positions: make(map[string]*domain.OpenPositionRecord),
		closes:    make(map[string]*domain.CloseVolumeRecord),
	}
}

// Get retrieves a status by key.
func (s *TradeStore) Get(_ context.Context, key domain.StatusKey) (*domain.TradeStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.statuses[key]
	if !ok {
		return nil, false, nil
	}
	return ts.Clone(), true, nil
}

// GetOrCreate returns the status, creating an Idle one when absent.
func (s *TradeStore) GetOrCreate(_ context.Context, customSymbol string, key domain.StatusKey, now time.Time) (*domain.TradeStatus, error) {
	if customSymbol == "" || key.Symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ts, ok := s.statuses[key]; ok {
		return ts.Clone(), nil
	}
	ts := &domain.TradeStatus{
		CustomSymbol:   customSymbol,
		Symbol:         key.Symbol,
		Kind:           key.Kind,
		Direction:      key.Direction,
		State:          domain.StateIdle,
		CloseCondition: domain.DefaultCloseCondition(),
		LastModified:   now,
	}
	s.statuses[key] = ts
	return ts.Clone(), nil
}

// Save inserts or replaces a status.
func (s *TradeStore) Save(_ context.Context, ts *domain.TradeStatus) error {
	if ts == nil || ts.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[ts.Key()] = ts.Clone()
	return nil
}

// ListByCustomSymbol retrieves all statuses of a custom symbol, ordered by symbol ASC.
func (s *TradeStore) ListByCustomSymbol(_ context.Context, customSymbol string) ([]*domain.TradeStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeStatus
	for _, ts := range s.statuses {
		if ts.CustomSymbol == customSymbol {
			result = append(result, ts.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

// Delete removes a status.
func (s *TradeStore) Delete(_ context.Context, key domain.StatusKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.statuses, key)
	return nil
}

// OpenPosition atomically saves the status and inserts its position.
func (s *TradeStore) OpenPosition(_ context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord) error {
	if ts == nil || pos == nil || pos.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[pos.PositionID]; exists {
		return storage.ErrDuplicateKey
	}
	s.positions[pos.PositionID] = pos.Clone()
	s.statuses[ts.Key()] = ts.Clone()
	return nil
}

// ClosePosition atomically inserts the close record and saves position and status.
func (s *TradeStore) ClosePosition(_ context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord, cv *domain.CloseVolumeRecord) error {
	if ts == nil || pos == nil || cv == nil || cv.CloseID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.closes[cv.CloseID]; exists {
		return storage.ErrDuplicateKey
	}
	c := *cv
	s.closes[cv.CloseID] = &c
	s.positions[pos.PositionID] = pos.Clone()
	s.statuses[ts.Key()] = ts.Clone()
	return nil
}

// Retire deletes the statuses of customSymbol whose symbol is not in keep.
func (s *TradeStore) Retire(_ context.Context, customSymbol string, keep []string) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, ts := range s.statuses {
		if ts.CustomSymbol != customSymbol {
			continue
		}
		if _, ok := keepSet[ts.Symbol]; ok {
			continue
		}
		delete(s.statuses, key)
		n++
	}
	return n, nil
}

// GetPosition retrieves a position by id.
func (s *TradeStore) GetPosition(_ context.Context, positionID string) (*domain.OpenPositionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[positionID]
	if !ok {
		return nil, false, nil
	}
	return pos.Clone(), true, nil
}

// ListCloses retrieves the close records of a position, ordered by trade time ASC.
func (s *TradeStore) ListCloses(_ context.Context, positionID string) ([]*domain.CloseVolumeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CloseVolumeRecord
	for _, cv := range s.closes {
		if cv.PositionID == positionID {
			c := *cv
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TradeTime.Before(result[j].TradeTime)
	})
	return result, nil
}

var (
	_ storage.TradeStatusStore = (*TradeStore)(nil)
	_ storage.PositionStore    = (*TradeStore)(nil)
)
