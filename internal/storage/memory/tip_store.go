package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// TipStore is an in-memory implementation of storage.TipStore.
type TipStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PreTradeTip // keyed by tip_id
}

// NewTipStore creates a new in-memory tip store.
func NewTipStore() *TipStore {
	return &TipStore{data: make(map[string]*domain.PreTradeTip)}
}

func cloneTip(t *domain.PreTradeTip) *domain.PreTradeTip {
	c := *t
	c.OpenCondition = t.OpenCondition.Clone()
	return &c
}

// Upsert inserts the tip or refreshes volume and last_modified of an existing one.
func (s *TipStore) Upsert(_ context.Context, tip *domain.PreTradeTip) (*domain.PreTradeTip, error) {
	if tip == nil || tip.TipID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[tip.TipID]; ok {
		existing.Volume = tip.Volume
		existing.LastModified = tip.LastModified
		return cloneTip(existing), nil
	}
	s.data[tip.TipID] = cloneTip(tip)
	return cloneTip(tip), nil
}

// Get retrieves a tip by id.
func (s *TipStore) Get(_ context.Context, tipID string) (*domain.PreTradeTip, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[tipID]
	if !ok {
		return nil, false, nil
	}
	return cloneTip(t), true, nil
}

// Latest retrieves the tips of the newest daily bar time, ordered by symbol ASC.
func (s *TipStore) Latest(_ context.Context) ([]*domain.PreTradeTip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest time.Time
	for _, t := range s.data {
		if t.DailyBarTime.After(newest) {
			newest = t.DailyBarTime
		}
	}

	var result []*domain.PreTradeTip
	for _, t := range s.data {
		if t.DailyBarTime.Equal(newest) {
			result = append(result, cloneTip(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].Direction < result[j].Direction
	})
	return result, nil
}

// LatestFor retrieves the newest tip of (symbol, direction).
func (s *TipStore) LatestFor(_ context.Context, symbol string, dir domain.Direction) (*domain.PreTradeTip, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.PreTradeTip
	for _, t := range s.data {
		if t.Symbol != symbol || t.Direction != dir {
			continue
		}
		if best == nil || t.DailyBarTime.After(best.DailyBarTime) ||
			(t.DailyBarTime.Equal(best.DailyBarTime) && t.CreatedAt.After(best.CreatedAt)) {
			best = t
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return cloneTip(best), true, nil
}

// SetNeedTrade sets operator approval.
func (s *TipStore) SetNeedTrade(_ context.Context, tipID string, needTrade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[tipID]
	if !ok {
		return storage.ErrNotFound
	}
	t.NeedTrade = needTrade
	return nil
}

// CountSince counts tips of (symbol, direction) with daily bar time at or after since.
func (s *TipStore) CountSince(_ context.Context, symbol string, dir domain.Direction, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.data {
		if t.Symbol == symbol && t.Direction == dir && !t.DailyBarTime.Before(since) {
			n++
		}
	}
	return n, nil
}

var _ storage.TipStore = (*TipStore)(nil)
