package clickhouse

import (
	"context"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
// Rows are deduplicated on (symbol, timeframe, bar_time) by ReplacingMergeTree;
// reads use FINAL so a re-inserted bar replaces the old one immediately.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds bars of one series.
func (s *BarStore) InsertBulk(ctx context.Context, symbol string, tf domain.Timeframe, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timeframe, bar_time, bar_id, open, high, low, close, volume, inserted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	// inserted_at orders versions of the same bar, including within one batch.
	now := time.Now()
	for i, b := range bars {
		err = batch.Append(
			symbol, tf.String(), b.Time, b.ID,
			b.Open, b.High, b.Low, b.Close, b.Volume,
			now.Add(time.Duration(i)*time.Millisecond),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves bars with time within [from, to] (inclusive), ordered by time ASC.
func (s *BarStore) GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	query := `
		SELECT bar_time, bar_id, open, high, low, close, volume
		FROM bars FINAL
		WHERE symbol = ? AND timeframe = ? AND bar_time >= ? AND bar_time <= ?
		ORDER BY bar_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, tf.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar

	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Time, &b.ID, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Time = b.Time.In(domain.ExchangeTZ)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
