package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

type seriesKey struct {
	symbol string
	tf     domain.Timeframe
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[seriesKey]map[int64]domain.Bar // bar time (unix ms) -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{data: make(map[seriesKey]map[int64]domain.Bar)}
}

// InsertBulk adds bars of one series. Re-inserting a bar time replaces it.
func (s *BarStore) InsertBulk(_ context.Context, symbol string, tf domain.Timeframe, bars []domain.Bar) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, tf}
	series, ok := s.data[key]
	if !ok {
		series = make(map[int64]domain.Bar)
		s.data[key] = series
	}
	for _, b := range bars {
		series[b.Time.UnixMilli()] = b
	}
	return nil
}

// GetRange retrieves bars within [from, to] (inclusive), ordered by time ASC.
func (s *BarStore) GetRange(_ context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for _, b := range s.data[seriesKey{symbol, tf}] {
		if b.Time.Before(from) || b.Time.After(to) {
			continue
		}
		result = append(result, b)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
