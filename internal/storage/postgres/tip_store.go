package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// TipStore implements storage.TipStore using PostgreSQL.
type TipStore struct {
	pool *Pool
}

// NewTipStore creates a new TipStore.
func NewTipStore(pool *Pool) *TipStore {
	return &TipStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TipStore = (*TipStore)(nil)

const tipColumns = `
	tip_id, custom_symbol, symbol, direction, daily_bar_time, last_price, volume,
	need_trade, open_condition, created_at, last_modified`

// Upsert inserts the tip or, when tip_id exists, updates only volume and last_modified.
func (s *TipStore) Upsert(ctx context.Context, tip *domain.PreTradeTip) (*domain.PreTradeTip, error) {
	if tip == nil || tip.TipID == "" {
		return nil, storage.ErrInvalidInput
	}
	oc, err := jsonb(tip.OpenCondition)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO pre_trade_tips (` + tipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tip_id) DO UPDATE SET
			volume = EXCLUDED.volume,
			last_modified = EXCLUDED.last_modified
		RETURNING ` + tipColumns

	row := s.pool.QueryRow(ctx, query,
		tip.TipID, tip.CustomSymbol, tip.Symbol, int16(tip.Direction), tip.DailyBarTime, tip.LastPrice, tip.Volume,
		tip.NeedTrade, oc, tip.CreatedAt, tip.LastModified,
	)
	stored, err := scanTip(row)
	if err != nil {
		return nil, fmt.Errorf("upsert tip: %w", err)
	}
	return stored, nil
}

// Get retrieves a tip by id.
func (s *TipStore) Get(ctx context.Context, tipID string) (*domain.PreTradeTip, bool, error) {
	query := `SELECT ` + tipColumns + ` FROM pre_trade_tips WHERE tip_id = $1`

	tip, err := scanTip(s.pool.QueryRow(ctx, query, tipID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get tip: %w", err)
	}
	return tip, true, nil
}

// Latest retrieves the tips of the newest daily bar time, ordered by symbol ASC.
func (s *TipStore) Latest(ctx context.Context) ([]*domain.PreTradeTip, error) {
	query := `SELECT ` + tipColumns + `
		FROM pre_trade_tips
		WHERE daily_bar_time = (SELECT max(daily_bar_time) FROM pre_trade_tips)
		ORDER BY symbol ASC, direction ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("latest tips: %w", err)
	}
	defer rows.Close()

	var result []*domain.PreTradeTip
	for rows.Next() {
		tip, err := scanTip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tip row: %w", err)
		}
		result = append(result, tip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tip rows: %w", err)
	}
	return result, nil
}

// LatestFor retrieves the newest tip of (symbol, direction).
func (s *TipStore) LatestFor(ctx context.Context, symbol string, dir domain.Direction) (*domain.PreTradeTip, bool, error) {
	query := `SELECT ` + tipColumns + `
		FROM pre_trade_tips
		WHERE symbol = $1 AND direction = $2
		ORDER BY daily_bar_time DESC, created_at DESC
		LIMIT 1`

	tip, err := scanTip(s.pool.QueryRow(ctx, query, symbol, int16(dir)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("latest tip for %s: %w", symbol, err)
	}
	return tip, true, nil
}

// SetNeedTrade sets operator approval. Returns ErrNotFound if the tip does not exist.
func (s *TipStore) SetNeedTrade(ctx context.Context, tipID string, needTrade bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE pre_trade_tips SET need_trade = $2 WHERE tip_id = $1`, tipID, needTrade)
	if err != nil {
		return fmt.Errorf("set need_trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountSince counts tips of (symbol, direction) with daily bar time at or after since.
func (s *TipStore) CountSince(ctx context.Context, symbol string, dir domain.Direction, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM pre_trade_tips
		WHERE symbol = $1 AND direction = $2 AND daily_bar_time >= $3`,
		symbol, int16(dir), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tips: %w", err)
	}
	return n, nil
}

func scanTip(row pgx.Row) (*domain.PreTradeTip, error) {
	var (
		tip       domain.PreTradeTip
		direction int16
		oc        []byte
	)
	err := row.Scan(
		&tip.TipID, &tip.CustomSymbol, &tip.Symbol, &direction, &tip.DailyBarTime, &tip.LastPrice, &tip.Volume,
		&tip.NeedTrade, &oc, &tip.CreatedAt, &tip.LastModified,
	)
	if err != nil {
		return nil, err
	}
	tip.Direction = domain.Direction(direction)
	if len(oc) > 0 {
		tip.OpenCondition = &domain.OpenCondition{}
		if err := fromJSONB(oc, tip.OpenCondition); err != nil {
			return nil, err
		}
	}
	return &tip, nil
}
