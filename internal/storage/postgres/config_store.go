package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// ConfigStore implements storage.ConfigStore using PostgreSQL.
type ConfigStore struct {
	pool *Pool
}

// NewConfigStore creates a new ConfigStore.
func NewConfigStore(pool *Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ConfigStore = (*ConfigStore)(nil)

const configColumns = `
	symbol, name, is_active, multiple, open_pos_scale,
	trade_switch_day, no_trade_switch_day, main_months, long_scales, short_scales`

// GetFuture retrieves the config of a continuous symbol.
func (s *ConfigStore) GetFuture(ctx context.Context, symbol string) (*domain.FutureConfig, bool, error) {
	query := `SELECT ` + configColumns + ` FROM future_configs WHERE symbol = $1`

	cfg, err := scanFutureConfig(s.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get future config: %w", err)
	}
	return cfg, true, nil
}

// SaveFuture inserts or replaces a config.
func (s *ConfigStore) SaveFuture(ctx context.Context, cfg *domain.FutureConfig) error {
	if cfg == nil || cfg.Symbol == "" {
		return storage.ErrInvalidInput
	}
	long, err := jsonb(cfg.Long)
	if err != nil {
		return err
	}
	short, err := jsonb(cfg.Short)
	if err != nil {
		return err
	}
	months := make([]int32, len(cfg.MainMonths))
	for i, m := range cfg.MainMonths {
		months[i] = int32(m)
	}

	query := `INSERT INTO future_configs (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			multiple = EXCLUDED.multiple,
			open_pos_scale = EXCLUDED.open_pos_scale,
			trade_switch_day = EXCLUDED.trade_switch_day,
			no_trade_switch_day = EXCLUDED.no_trade_switch_day,
			main_months = EXCLUDED.main_months,
			long_scales = EXCLUDED.long_scales,
			short_scales = EXCLUDED.short_scales`

	_, err = s.pool.Exec(ctx, query,
		cfg.Symbol, cfg.Name, cfg.IsActive, cfg.Multiple, cfg.OpenPosScale,
		cfg.TradeSwitchDay(), cfg.NoTradeSwitchDay(), months, long, short,
	)
	if err != nil {
		return fmt.Errorf("save future config: %w", err)
	}
	return nil
}

// ListFutures retrieves all configs, ordered by symbol ASC.
func (s *ConfigStore) ListFutures(ctx context.Context) ([]*domain.FutureConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+configColumns+` FROM future_configs ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list future configs: %w", err)
	}
	defer rows.Close()

	var result []*domain.FutureConfig
	for rows.Next() {
		cfg, err := scanFutureConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan future config row: %w", err)
		}
		result = append(result, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate future config rows: %w", err)
	}
	return result, nil
}

func scanFutureConfig(row pgx.Row) (*domain.FutureConfig, error) {
	var (
		cfg         domain.FutureConfig
		months      []int32
		long, short []byte
	)
	err := row.Scan(
		&cfg.Symbol, &cfg.Name, &cfg.IsActive, &cfg.Multiple, &cfg.OpenPosScale,
		&cfg.SwitchDays[0], &cfg.SwitchDays[1], &months, &long, &short,
	)
	if err != nil {
		return nil, err
	}
	for _, m := range months {
		cfg.MainMonths = append(cfg.MainMonths, int(m))
	}
	if err := fromJSONB(long, &cfg.Long); err != nil {
		return nil, err
	}
	if err := fromJSONB(short, &cfg.Short); err != nil {
		return nil, err
	}
	return &cfg, nil
}
