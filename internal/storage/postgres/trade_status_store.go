package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// TradeStatusStore implements storage.TradeStatusStore and storage.PositionStore
// using PostgreSQL. Position mutations share a transaction with their status.
type TradeStatusStore struct {
	pool *Pool
}

// NewTradeStatusStore creates a new TradeStatusStore.
func NewTradeStatusStore(pool *Pool) *TradeStatusStore {
	return &TradeStatusStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.TradeStatusStore = (*TradeStatusStore)(nil)
	_ storage.PositionStore    = (*TradeStatusStore)(nil)
)

const statusColumns = `
	kind, symbol, direction, custom_symbol, state, carrying_volume,
	start_time, end_time, last_modified, open_condition, close_condition, open_position_id`

// Get retrieves the status of (kind, symbol, direction).
func (s *TradeStatusStore) Get(ctx context.Context, key domain.StatusKey) (*domain.TradeStatus, bool, error) {
	query := `SELECT ` + statusColumns + `
		FROM trade_statuses
		WHERE kind = $1 AND symbol = $2 AND direction = $3`

	ts, err := scanTradeStatus(s.pool.QueryRow(ctx, query, string(key.Kind), key.Symbol, int16(key.Direction)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get trade status: %w", err)
	}
	return ts, true, nil
}

// GetOrCreate returns the status, creating an Idle one for customSymbol when absent.
func (s *TradeStatusStore) GetOrCreate(ctx context.Context, customSymbol string, key domain.StatusKey, now time.Time) (*domain.TradeStatus, error) {
	if customSymbol == "" || key.Symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	fresh := &domain.TradeStatus{
		CustomSymbol:   customSymbol,
		Symbol:         key.Symbol,
		Kind:           key.Kind,
		Direction:      key.Direction,
		State:          domain.StateIdle,
		CloseCondition: domain.DefaultCloseCondition(),
		LastModified:   now,
	}
	args, err := statusArgs(fresh)
	if err != nil {
		return nil, err
	}
	query := `INSERT INTO trade_statuses (` + statusColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (kind, symbol, direction) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create trade status: %w", err)
	}

	ts, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trade status %s vanished after create", key.Symbol)
	}
	return ts, nil
}

// Save inserts or replaces the status.
func (s *TradeStatusStore) Save(ctx context.Context, ts *domain.TradeStatus) error {
	if ts == nil || ts.Symbol == "" {
		return storage.ErrInvalidInput
	}
	if err := saveStatus(ctx, s.pool, ts); err != nil {
		return fmt.Errorf("save trade status: %w", err)
	}
	return nil
}

// ListByCustomSymbol retrieves all statuses of a custom symbol, ordered by symbol ASC.
func (s *TradeStatusStore) ListByCustomSymbol(ctx context.Context, customSymbol string) ([]*domain.TradeStatus, error) {
	query := `SELECT ` + statusColumns + `
		FROM trade_statuses
		WHERE custom_symbol = $1
		ORDER BY symbol ASC`

	rows, err := s.pool.Query(ctx, query, customSymbol)
	if err != nil {
		return nil, fmt.Errorf("list trade statuses: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeStatus
	for rows.Next() {
		ts, err := scanTradeStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade status row: %w", err)
		}
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade status rows: %w", err)
	}
	return result, nil
}

// Delete removes a status.
func (s *TradeStatusStore) Delete(ctx context.Context, key domain.StatusKey) error {
	query := `DELETE FROM trade_statuses WHERE kind = $1 AND symbol = $2 AND direction = $3`
	if _, err := s.pool.Exec(ctx, query, string(key.Kind), key.Symbol, int16(key.Direction)); err != nil {
		return fmt.Errorf("delete trade status: %w", err)
	}
	return nil
}

// OpenPosition atomically saves the status and inserts its new position.
func (s *TradeStatusStore) OpenPosition(ctx context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord) error {
	if ts == nil || pos == nil || pos.PositionID == "" {
		return storage.ErrInvalidInput
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertPosition(ctx, tx, pos); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert position: %w", err)
		}
		if err := saveStatus(ctx, tx, ts); err != nil {
			return fmt.Errorf("save trade status: %w", err)
		}
		return nil
	})
}

// ClosePosition atomically inserts the close record, saves the position and saves the status.
func (s *TradeStatusStore) ClosePosition(ctx context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord, cv *domain.CloseVolumeRecord) error {
	if ts == nil || pos == nil || cv == nil || cv.CloseID == "" {
		return storage.ErrInvalidInput
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO close_volumes (
				close_id, position_id, symbol, direction, trade_price, volume,
				trade_time, order_id, reason, message
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			cv.CloseID, cv.PositionID, cv.Symbol, int16(cv.Direction), cv.TradePrice, cv.Volume,
			cv.TradeTime, cv.OrderID, int16(cv.Reason), cv.Message,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert close volume: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE open_positions SET is_closed = $2, close_ids = $3, close_condition = $4
			WHERE position_id = $1`,
			pos.PositionID, pos.IsClosed, closeIDs(pos), mustJSONB(pos.CloseCondition),
		)
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}

		if err := saveStatus(ctx, tx, ts); err != nil {
			return fmt.Errorf("save trade status: %w", err)
		}
		return nil
	})
}

// Retire deletes the statuses of customSymbol whose symbol is not in keep.
func (s *TradeStatusStore) Retire(ctx context.Context, customSymbol string, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_statuses WHERE custom_symbol = $1 AND NOT (symbol = ANY($2))`,
		customSymbol, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("retire trade statuses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetPosition retrieves a position by id.
func (s *TradeStatusStore) GetPosition(ctx context.Context, positionID string) (*domain.OpenPositionRecord, bool, error) {
	query := `
		SELECT position_id, custom_symbol, symbol, kind, direction, trade_price, volume,
			trade_time, order_id, open_condition, close_condition, is_closed, close_ids, tip_id
		FROM open_positions
		WHERE position_id = $1`

	var (
		p         domain.OpenPositionRecord
		kind      string
		direction int16
		oc, cc    []byte
	)
	err := s.pool.QueryRow(ctx, query, positionID).Scan(
		&p.PositionID, &p.CustomSymbol, &p.Symbol, &kind, &direction, &p.TradePrice, &p.Volume,
		&p.TradeTime, &p.OrderID, &oc, &cc, &p.IsClosed, &p.CloseIDs, &p.TipID,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get position: %w", err)
	}
	p.Kind = domain.StrategyKind(kind)
	p.Direction = domain.Direction(direction)
	if err := decodeConditions(oc, cc, &p.OpenCondition, &p.CloseCondition); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// ListCloses retrieves the close records of a position, ordered by trade time ASC.
func (s *TradeStatusStore) ListCloses(ctx context.Context, positionID string) ([]*domain.CloseVolumeRecord, error) {
	query := `
		SELECT close_id, position_id, symbol, direction, trade_price, volume,
			trade_time, order_id, reason, message
		FROM close_volumes
		WHERE position_id = $1
		ORDER BY trade_time ASC, close_id ASC`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("list closes: %w", err)
	}
	defer rows.Close()

	var result []*domain.CloseVolumeRecord
	for rows.Next() {
		var (
			cv        domain.CloseVolumeRecord
			direction int16
			reason    int16
		)
		err := rows.Scan(
			&cv.CloseID, &cv.PositionID, &cv.Symbol, &direction, &cv.TradePrice, &cv.Volume,
			&cv.TradeTime, &cv.OrderID, &reason, &cv.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("scan close row: %w", err)
		}
		cv.Direction = domain.Direction(direction)
		cv.Reason = domain.CloseReason(reason)
		result = append(result, &cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate close rows: %w", err)
	}
	return result, nil
}

func statusArgs(ts *domain.TradeStatus) ([]any, error) {
	oc, err := jsonb(ts.OpenCondition)
	if err != nil {
		return nil, err
	}
	cc, err := jsonb(ts.CloseCondition)
	if err != nil {
		return nil, err
	}
	return []any{
		string(ts.Kind), ts.Symbol, int16(ts.Direction), ts.CustomSymbol, int16(ts.State), ts.CarryingVolume,
		nullTime(ts.StartTime), nullTime(ts.EndTime), ts.LastModified, oc, cc, ts.OpenPositionID,
	}, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveStatus(ctx context.Context, db execer, ts *domain.TradeStatus) error {
	args, err := statusArgs(ts)
	if err != nil {
		return err
	}
	query := `INSERT INTO trade_statuses (` + statusColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (kind, symbol, direction) DO UPDATE SET
			custom_symbol = EXCLUDED.custom_symbol,
			state = EXCLUDED.state,
			carrying_volume = EXCLUDED.carrying_volume,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			last_modified = EXCLUDED.last_modified,
			open_condition = EXCLUDED.open_condition,
			close_condition = EXCLUDED.close_condition,
			open_position_id = EXCLUDED.open_position_id`
	_, err = db.Exec(ctx, query, args...)
	return err
}

func insertPosition(ctx context.Context, db execer, pos *domain.OpenPositionRecord) error {
	oc, err := jsonb(pos.OpenCondition)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO open_positions (
			position_id, custom_symbol, symbol, kind, direction, trade_price, volume,
			trade_time, order_id, open_condition, close_condition, is_closed, close_ids, tip_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		pos.PositionID, pos.CustomSymbol, pos.Symbol, string(pos.Kind), int16(pos.Direction), pos.TradePrice, pos.Volume,
		pos.TradeTime, pos.OrderID, oc, mustJSONB(pos.CloseCondition), pos.IsClosed, closeIDs(pos), pos.TipID,
	)
	return err
}

func closeIDs(pos *domain.OpenPositionRecord) []string {
	if pos.CloseIDs == nil {
		return []string{}
	}
	return pos.CloseIDs
}

// mustJSONB encodes a close condition, which has no unencodable fields.
func mustJSONB(cc domain.CloseConditionState) []byte {
	data, _ := jsonb(cc)
	return data
}

func decodeConditions(oc, cc []byte, open **domain.OpenCondition, closeCond *domain.CloseConditionState) error {
	if len(oc) > 0 {
		*open = &domain.OpenCondition{}
		if err := fromJSONB(oc, *open); err != nil {
			return err
		}
	}
	return fromJSONB(cc, closeCond)
}

func scanTradeStatus(row pgx.Row) (*domain.TradeStatus, error) {
	var (
		ts                 domain.TradeStatus
		kind               string
		direction, state   int16
		startTime, endTime *time.Time
		oc, cc             []byte
	)
	err := row.Scan(
		&kind, &ts.Symbol, &direction, &ts.CustomSymbol, &state, &ts.CarryingVolume,
		&startTime, &endTime, &ts.LastModified, &oc, &cc, &ts.OpenPositionID,
	)
	if err != nil {
		return nil, err
	}
	ts.Kind = domain.StrategyKind(kind)
	ts.Direction = domain.Direction(direction)
	ts.State = domain.LifecycleState(state)
	ts.StartTime = timeOrZero(startTime)
	ts.EndTime = timeOrZero(endTime)
	if err := decodeConditions(oc, cc, &ts.OpenCondition, &ts.CloseCondition); err != nil {
		return nil, err
	}
	return &ts, nil
}
