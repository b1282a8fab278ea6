package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// RolloverStore implements storage.RolloverStore using PostgreSQL.
type RolloverStore struct {
	pool *Pool
}

// NewRolloverStore creates a new RolloverStore.
func NewRolloverStore(pool *Pool) *RolloverStore {
	return &RolloverStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RolloverStore = (*RolloverStore)(nil)

// GetState retrieves the rollover state of a custom symbol.
func (s *RolloverStore) GetState(ctx context.Context, customSymbol string) (*domain.JointSymbolRolloverState, bool, error) {
	query := `
		SELECT custom_symbol, continuous_symbol, kind, direction, current_symbol, next_symbol, last_modified
		FROM rollover_states
		WHERE custom_symbol = $1`

	var (
		st        domain.JointSymbolRolloverState
		kind      string
		direction int16
	)
	err := s.pool.QueryRow(ctx, query, customSymbol).Scan(
		&st.CustomSymbol, &st.ContinuousSymbol, &kind, &direction,
		&st.CurrentSymbol, &st.NextSymbol, &st.LastModified,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get rollover state: %w", err)
	}
	st.Kind = domain.StrategyKind(kind)
	st.Direction = domain.Direction(direction)
	return &st, true, nil
}

// SaveState inserts or replaces the rollover state.
func (s *RolloverStore) SaveState(ctx context.Context, st *domain.JointSymbolRolloverState) error {
	if st == nil || st.CustomSymbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO rollover_states (
			custom_symbol, continuous_symbol, kind, direction, current_symbol, next_symbol, last_modified
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (custom_symbol) DO UPDATE SET
			continuous_symbol = EXCLUDED.continuous_symbol,
			kind = EXCLUDED.kind,
			direction = EXCLUDED.direction,
			current_symbol = EXCLUDED.current_symbol,
			next_symbol = EXCLUDED.next_symbol,
			last_modified = EXCLUDED.last_modified`

	_, err := s.pool.Exec(ctx, query,
		st.CustomSymbol, st.ContinuousSymbol, string(st.Kind), int16(st.Direction),
		st.CurrentSymbol, st.NextSymbol, st.LastModified,
	)
	if err != nil {
		return fmt.Errorf("save rollover state: %w", err)
	}
	return nil
}

const switchColumns = `
	record_id, custom_symbol, current_symbol, next_symbol, quote_time, direction, kind,
	current_close_done, next_need_open, next_open_done,
	current_position_id, close_volume_id, next_position_id, current_volume`

// CreateSwitchRecord inserts a record. Returns ErrDuplicateKey if (custom_symbol, next_symbol) exists.
func (s *RolloverStore) CreateSwitchRecord(ctx context.Context, rec *domain.SwitchRecord) error {
	if rec == nil || rec.CustomSymbol == "" || rec.NextSymbol == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO switch_records (` + switchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query, switchArgs(rec)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert switch record: %w", err)
	}
	return nil
}

// GetSwitchRecord retrieves the record of (customSymbol, nextSymbol).
func (s *RolloverStore) GetSwitchRecord(ctx context.Context, customSymbol, nextSymbol string) (*domain.SwitchRecord, bool, error) {
	query := `SELECT ` + switchColumns + `
		FROM switch_records
		WHERE custom_symbol = $1 AND next_symbol = $2`

	rec, err := scanSwitchRecord(s.pool.QueryRow(ctx, query, customSymbol, nextSymbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get switch record: %w", err)
	}
	return rec, true, nil
}

// GetPendingSwitch retrieves the record closing currentSymbol whose close leg is not done.
func (s *RolloverStore) GetPendingSwitch(ctx context.Context, customSymbol, currentSymbol string) (*domain.SwitchRecord, bool, error) {
	query := `SELECT ` + switchColumns + `
		FROM switch_records
		WHERE custom_symbol = $1 AND current_symbol = $2 AND NOT current_close_done
		ORDER BY quote_time DESC
		LIMIT 1`

	rec, err := scanSwitchRecord(s.pool.QueryRow(ctx, query, customSymbol, currentSymbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get pending switch: %w", err)
	}
	return rec, true, nil
}

// UpdateSwitchRecord replaces a record. Returns ErrNotFound if it does not exist.
func (s *RolloverStore) UpdateSwitchRecord(ctx context.Context, rec *domain.SwitchRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE switch_records SET
			record_id = $1, current_symbol = $3, quote_time = $5, direction = $6, kind = $7,
			current_close_done = $8, next_need_open = $9, next_open_done = $10,
			current_position_id = $11, close_volume_id = $12, next_position_id = $13, current_volume = $14
		WHERE custom_symbol = $2 AND next_symbol = $4`

	tag, err := s.pool.Exec(ctx, query, switchArgs(rec)...)
	if err != nil {
		return fmt.Errorf("update switch record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPendingSwitches retrieves records of customSymbol with an unfinished leg.
func (s *RolloverStore) ListPendingSwitches(ctx context.Context, customSymbol string) ([]*domain.SwitchRecord, error) {
	query := `SELECT ` + switchColumns + `
		FROM switch_records
		WHERE custom_symbol = $1
			AND (NOT current_close_done OR (next_need_open AND NOT next_open_done))
		ORDER BY quote_time ASC, next_symbol ASC`

	rows, err := s.pool.Query(ctx, query, customSymbol)
	if err != nil {
		return nil, fmt.Errorf("list pending switches: %w", err)
	}
	defer rows.Close()

	var result []*domain.SwitchRecord
	for rows.Next() {
		rec, err := scanSwitchRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan switch record row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate switch record rows: %w", err)
	}
	return result, nil
}

func switchArgs(rec *domain.SwitchRecord) []any {
	return []any{
		rec.RecordID, rec.CustomSymbol, rec.CurrentSymbol, rec.NextSymbol, rec.QuoteTime,
		int16(rec.Direction), string(rec.Kind),
		rec.CurrentCloseDone, rec.NextNeedOpen, rec.NextOpenDone,
		rec.CurrentPositionID, rec.CloseVolumeID, rec.NextPositionID, rec.CurrentVolume,
	}
}

func scanSwitchRecord(row pgx.Row) (*domain.SwitchRecord, error) {
	var (
		rec       domain.SwitchRecord
		direction int16
		kind      string
	)
	err := row.Scan(
		&rec.RecordID, &rec.CustomSymbol, &rec.CurrentSymbol, &rec.NextSymbol, &rec.QuoteTime,
		&direction, &kind,
		&rec.CurrentCloseDone, &rec.NextNeedOpen, &rec.NextOpenDone,
		&rec.CurrentPositionID, &rec.CloseVolumeID, &rec.NextPositionID, &rec.CurrentVolume,
	)
	if err != nil {
		return nil, err
	}
	rec.Direction = domain.Direction(direction)
	rec.Kind = domain.StrategyKind(kind)
	return &rec, nil
}
