package postgres

import (
	"context"
	"fmt"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Insert adds a terminal order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(ctx context.Context, o *domain.OrderRecord) error {
	if o == nil || o.OrderID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO orders (
			order_id, exchange_order_id, symbol, side, "offset",
			volume_origin, volume_left, limit_price, price_type, status,
			is_error, last_msg, trade_price, insert_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		o.OrderID, o.ExchangeOrderID, o.Symbol, string(o.Side), string(o.Offset),
		o.VolumeOrigin, o.VolumeLeft, o.LimitPrice, o.PriceType, o.Status,
		o.IsError, o.LastMessage, o.TradePrice, o.InsertTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ListBySymbol retrieves orders of a symbol, ordered by insert time ASC.
func (s *OrderStore) ListBySymbol(ctx context.Context, symbol string) ([]*domain.OrderRecord, error) {
	query := `
		SELECT order_id, exchange_order_id, symbol, side, "offset",
			volume_origin, volume_left, limit_price, price_type, status,
			is_error, last_msg, trade_price, insert_time
		FROM orders
		WHERE symbol = $1
		ORDER BY insert_time ASC, order_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []*domain.OrderRecord
	for rows.Next() {
		var (
			o            domain.OrderRecord
			side, offset string
		)
		err := rows.Scan(
			&o.OrderID, &o.ExchangeOrderID, &o.Symbol, &side, &offset,
			&o.VolumeOrigin, &o.VolumeLeft, &o.LimitPrice, &o.PriceType, &o.Status,
			&o.IsError, &o.LastMessage, &o.TradePrice, &o.InsertTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o.Side = domain.OrderSide(side)
		o.Offset = domain.OrderOffset(offset)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return result, nil
}
