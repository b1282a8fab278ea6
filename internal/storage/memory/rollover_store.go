package memory

import (
	"context"
	"sort"
	"sync"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

type switchKey struct {
	customSymbol string
	nextSymbol   string
}

// RolloverStore is an in-memory implementation of storage.RolloverStore.
type RolloverStore struct {
	mu      sync.RWMutex
	states  map[string]*domain.JointSymbolRolloverState // keyed by custom_symbol
	records map[switchKey]*domain.SwitchRecord
}

// NewRolloverStore creates a new in-memory rollover store.
func NewRolloverStore() *RolloverStore {
	return &RolloverStore{
		states:  make(map[string]*domain.JointSymbolRolloverState),
		records: make(map[switchKey]*domain.SwitchRecord),
	}
}

// GetState retrieves the rollover state of a custom symbol.
func (s *RolloverStore) GetState(_ context.Context, customSymbol string) (*domain.JointSymbolRolloverState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[customSymbol]
	if !ok {
		return nil, false, nil
	}
	c := *st
	return &c, true, nil
}

// SaveState inserts or replaces the rollover state.
func (s *RolloverStore) SaveState(_ context.Context, st *domain.JointSymbolRolloverState) error {
	if st == nil || st.CustomSymbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *st
	s.states[st.CustomSymbol] = &c
	return nil
}

// CreateSwitchRecord inserts a record unique on (custom_symbol, next_symbol).
func (s *RolloverStore) CreateSwitchRecord(_ context.Context, rec *domain.SwitchRecord) error {
	if rec == nil || rec.CustomSymbol == "" || rec.NextSymbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := switchKey{rec.CustomSymbol, rec.NextSymbol}
	if _, exists := s.records[key]; exists {
		return storage.ErrDuplicateKey
	}
	c := *rec
	s.records[key] = &c
	return nil
}

// GetSwitchRecord retrieves the record of (customSymbol, nextSymbol).
func (s *RolloverStore) GetSwitchRecord(_ context.Context, customSymbol, nextSymbol string) (*domain.SwitchRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[switchKey{customSymbol, nextSymbol}]
	if !ok {
		return nil, false, nil
	}
	c := *rec
	return &c, true, nil
}

// GetPendingSwitch retrieves the record closing currentSymbol whose close leg is not done.
func (s *RolloverStore) GetPendingSwitch(_ context.Context, customSymbol, currentSymbol string) (*domain.SwitchRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.CustomSymbol == customSymbol && rec.CurrentSymbol == currentSymbol && !rec.CurrentCloseDone {
			c := *rec
			return &c, true, nil
		}
	}
	return nil, false, nil
}

// UpdateSwitchRecord replaces a record.
func (s *RolloverStore) UpdateSwitchRecord(_ context.Context, rec *domain.SwitchRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := switchKey{rec.CustomSymbol, rec.NextSymbol}
	if _, exists := s.records[key]; !exists {
		return storage.ErrNotFound
	}
	c := *rec
	s.records[key] = &c
	return nil
}

// ListPendingSwitches retrieves records of customSymbol with an unfinished leg,
// ordered by quote time ASC.
func (s *RolloverStore) ListPendingSwitches(_ context.Context, customSymbol string) ([]*domain.SwitchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwitchRecord
	for _, rec := range s.records {
		if rec.CustomSymbol != customSymbol {
			continue
		}
		if rec.CurrentCloseDone && (!rec.NextNeedOpen || rec.NextOpenDone) {
			continue
		}
		c := *rec
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].QuoteTime.Before(result[j].QuoteTime)
	})
	return result, nil
}

var _ storage.RolloverStore = (*RolloverStore)(nil)
