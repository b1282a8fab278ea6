package storage

import (
	"context"
	"time"

	"futures-trader/internal/domain"
)

// TradeStatusStore provides access to trade_statuses storage.
// Multi-entity mutations are single durable units.
type TradeStatusStore interface {
	// Get retrieves the status of (kind, symbol, direction). ok is false when absent.
	Get(ctx context.Context, key domain.StatusKey) (*domain.TradeStatus, bool, error)

	// GetOrCreate returns the status, creating an Idle one for customSymbol when absent.
	GetOrCreate(ctx context.Context, customSymbol string, key domain.StatusKey, now time.Time) (*domain.TradeStatus, error)

	// Save inserts or replaces the status.
	Save(ctx context.Context, ts *domain.TradeStatus) error

	// ListByCustomSymbol retrieves all statuses of a custom symbol, ordered by symbol ASC.
	ListByCustomSymbol(ctx context.Context, customSymbol string) ([]*domain.TradeStatus, error)

	// Delete removes a status. Deleting an absent status is a no-op.
	Delete(ctx context.Context, key domain.StatusKey) error

	// OpenPosition atomically saves the status and inserts its new position.
	// Returns ErrDuplicateKey if the position id exists.
	OpenPosition(ctx context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord) error

	// ClosePosition atomically inserts the close record, saves the position and saves the status.
	// Returns ErrDuplicateKey if the close id exists.
	ClosePosition(ctx context.Context, ts *domain.TradeStatus, pos *domain.OpenPositionRecord, cv *domain.CloseVolumeRecord) error

	// Retire deletes the statuses of customSymbol whose symbol is not in keep.
	// Returns the number of deleted statuses.
	Retire(ctx context.Context, customSymbol string, keep []string) (int, error)
}

// PositionStore provides read access to open_positions and close_volumes.
type PositionStore interface {
	// GetPosition retrieves a position by id. ok is false when absent.
	GetPosition(ctx context.Context, positionID string) (*domain.OpenPositionRecord, bool, error)

	// ListCloses retrieves the close records of a position, ordered by trade time ASC.
	ListCloses(ctx context.Context, positionID string) ([]*domain.CloseVolumeRecord, error)
}

// RolloverStore provides access to rollover_states and switch_records storage.
type RolloverStore interface {
	// GetState retrieves the rollover state of a custom symbol. ok is false when absent.
	GetState(ctx context.Context, customSymbol string) (*domain.JointSymbolRolloverState, bool, error)

	// SaveState inserts or replaces the rollover state.
	SaveState(ctx context.Context, st *domain.JointSymbolRolloverState) error

	// CreateSwitchRecord inserts a record. Returns ErrDuplicateKey if (custom_symbol, next_symbol) exists.
	CreateSwitchRecord(ctx context.Context, rec *domain.SwitchRecord) error

	// GetSwitchRecord retrieves the record of (customSymbol, nextSymbol). ok is false when absent.
	GetSwitchRecord(ctx context.Context, customSymbol, nextSymbol string) (*domain.SwitchRecord, bool, error)

	// GetPendingSwitch retrieves the record closing currentSymbol whose close leg is not done.
	GetPendingSwitch(ctx context.Context, customSymbol, currentSymbol string) (*domain.SwitchRecord, bool, error)

	// UpdateSwitchRecord replaces a record. Returns ErrNotFound if it does not exist.
	UpdateSwitchRecord(ctx context.Context, rec *domain.SwitchRecord) error

	// ListPendingSwitches retrieves records of customSymbol with an unfinished leg.
	ListPendingSwitches(ctx context.Context, customSymbol string) ([]*domain.SwitchRecord, error)
}

// TipStore provides access to pre_trade_tips storage.
type TipStore interface {
	// Upsert inserts the tip or, when tip_id exists, updates only volume and last_modified.
	// Returns the stored tip.
	Upsert(ctx context.Context, tip *domain.PreTradeTip) (*domain.PreTradeTip, error)

	// Get retrieves a tip by id. ok is false when absent.
	Get(ctx context.Context, tipID string) (*domain.PreTradeTip, bool, error)

	// Latest retrieves the tips of the newest daily bar time, ordered by symbol ASC.
	Latest(ctx context.Context) ([]*domain.PreTradeTip, error)

	// LatestFor retrieves the newest tip of (symbol, direction). ok is false when absent.
	LatestFor(ctx context.Context, symbol string, dir domain.Direction) (*domain.PreTradeTip, bool, error)

	// SetNeedTrade sets operator approval. Returns ErrNotFound if the tip does not exist.
	SetNeedTrade(ctx context.Context, tipID string, needTrade bool) error

	// CountSince counts tips of (symbol, direction) with daily bar time at or after since.
	CountSince(ctx context.Context, symbol string, dir domain.Direction, since time.Time) (int, error)
}

// OrderStore provides access to orders storage.
type OrderStore interface {
	// Insert adds a terminal order. Returns ErrDuplicateKey if order_id exists.
	Insert(ctx context.Context, o *domain.OrderRecord) error

	// ListBySymbol retrieves orders of a symbol, ordered by insert time ASC.
	ListBySymbol(ctx context.Context, symbol string) ([]*domain.OrderRecord, error)
}

// ConfigStore provides access to future_configs storage.
type ConfigStore interface {
	// GetFuture retrieves the config of a continuous symbol. ok is false when absent.
	GetFuture(ctx context.Context, symbol string) (*domain.FutureConfig, bool, error)

	// SaveFuture inserts or replaces a config.
	SaveFuture(ctx context.Context, cfg *domain.FutureConfig) error

	// ListFutures retrieves all configs, ordered by symbol ASC.
	ListFutures(ctx context.Context) ([]*domain.FutureConfig, error)
}

// BarStore provides access to bar history (clickhouse bars table).
type BarStore interface {
	// InsertBulk adds bars of one series. Re-inserting a bar time replaces it.
	InsertBulk(ctx context.Context, symbol string, tf domain.Timeframe, bars []domain.Bar) error

	// GetRange retrieves bars with time within [from, to] (inclusive), ordered by time ASC.
	GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error)
}

// AuditStore records orders and matches for analytics. Append-only.
type AuditStore interface {
	// RecordOrder appends a terminal order.
	RecordOrder(ctx context.Context, runID string, o *domain.OrderRecord) error

	// RecordMatch appends the captured snapshots of a matched cascade.
	RecordMatch(ctx context.Context, records []*domain.MatchRecord) error
}
