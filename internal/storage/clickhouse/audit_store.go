package clickhouse

import (
	"context"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// AuditStore implements storage.AuditStore using ClickHouse.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// RecordOrder appends a terminal order.
func (s *AuditStore) RecordOrder(ctx context.Context, runID string, o *domain.OrderRecord) error {
	if o == nil {
		return storage.ErrInvalidInput
	}

	var isError uint8
	if o.IsError {
		isError = 1
	}
	err := s.conn.Exec(ctx, `
		INSERT INTO order_audit (
			run_id, order_id, exchange_order_id, symbol, side, offset,
			volume_origin, volume_left, limit_price, price_type, status,
			is_error, last_msg, trade_price, insert_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.OrderID, o.ExchangeOrderID, o.Symbol, string(o.Side), string(o.Offset),
		int32(o.VolumeOrigin), int32(o.VolumeLeft), o.LimitPrice, o.PriceType, o.Status,
		isError, o.LastMessage, o.TradePrice, o.InsertTime,
	)
	if err != nil {
		return fmt.Errorf("insert order audit: %w", err)
	}
	return nil
}

// RecordMatch appends the captured snapshots of a matched cascade.
func (s *AuditStore) RecordMatch(ctx context.Context, records []*domain.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO match_audit (
			run_id, custom_symbol, symbol, kind, direction, timeframe, bar_id, kline_time,
			open, close, ema_fast, ema_mid, ema_slow, macd, condition_id, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		snap := r.Snapshot
		err = batch.Append(
			r.RunID, r.CustomSymbol, r.Symbol, string(r.Kind), int8(r.Direction),
			snap.Timeframe.String(), snap.BarID, snap.KlineTime,
			snap.Open, snap.Close, snap.EMAFast, snap.EMAMid, snap.EMASlow, snap.MACD,
			int32(snap.ConditionID), r.RecordedAt,
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

// ListOrders retrieves the audited orders of a run, ordered by insert time ASC.
func (s *AuditStore) ListOrders(ctx context.Context, runID string) ([]*domain.OrderRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT order_id, exchange_order_id, symbol, side, offset,
			volume_origin, volume_left, limit_price, price_type, status,
			is_error, last_msg, trade_price, insert_time
		FROM order_audit
		WHERE run_id = ?
		ORDER BY insert_time ASC, order_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query order audit: %w", err)
	}
	defer rows.Close()

	var result []*domain.OrderRecord
	for rows.Next() {
		var (
			o                        domain.OrderRecord
			side, offset             string
			volumeOrigin, volumeLeft int32
			isError                  uint8
			insertTime               time.Time
		)
		err := rows.Scan(
			&o.OrderID, &o.ExchangeOrderID, &o.Symbol, &side, &offset,
			&volumeOrigin, &volumeLeft, &o.LimitPrice, &o.PriceType, &o.Status,
			&isError, &o.LastMessage, &o.TradePrice, &insertTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order audit row: %w", err)
		}
		o.Side = domain.OrderSide(side)
		o.Offset = domain.OrderOffset(offset)
		o.VolumeOrigin = int(volumeOrigin)
		o.VolumeLeft = int(volumeLeft)
		o.IsError = isError == 1
		o.InsertTime = insertTime.In(domain.ExchangeTZ)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order audit rows: %w", err)
	}
	return result, nil
}

// CountMatches counts the match rows of a run.
func (s *AuditStore) CountMatches(ctx context.Context, runID string) (int, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM match_audit WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count match audit: %w", err)
	}
	return int(n), nil
}
