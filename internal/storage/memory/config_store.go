package memory

import (
	"context"
	"sort"
	"sync"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// ConfigStore is an in-memory implementation of storage.ConfigStore.
type ConfigStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FutureConfig // keyed by continuous symbol
}

// NewConfigStore creates a new in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{data: make(map[string]*domain.FutureConfig)}
}

func cloneConfig(c *domain.FutureConfig) *domain.FutureConfig {
	out := *c
	out.MainMonths = append([]int(nil), c.MainMonths...)
	return &out
}

// GetFuture retrieves the config of a continuous symbol.
func (s *ConfigStore) GetFuture(_ context.Context, symbol string) (*domain.FutureConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[symbol]
	if !ok {
		return nil, false, nil
	}
	return cloneConfig(c), true, nil
}

// SaveFuture inserts or replaces a config.
func (s *ConfigStore) SaveFuture(_ context.Context, cfg *domain.FutureConfig) error {
	if cfg == nil || cfg.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[cfg.Symbol] = cloneConfig(cfg)
	return nil
}

// ListFutures retrieves all configs, ordered by symbol ASC.
func (s *ConfigStore) ListFutures(_ context.Context) ([]*domain.FutureConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FutureConfig, 0, len(s.data))
	for _, c := range s.data {
		result = append(result, cloneConfig(c))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.ConfigStore = (*ConfigStore)(nil)
