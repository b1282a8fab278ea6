package tradestatus

import (
	"context"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// Machine applies transitions and persists each one as a single unit.
// The returned status is the persisted one; on error nothing changed.
type Machine struct {
	statuses  storage.TradeStatusStore
	positions storage.PositionStore
}

// NewMachine creates a machine over the given stores.
func NewMachine(statuses storage.TradeStatusStore, positions storage.PositionStore) *Machine {
	return &Machine{statuses: statuses, positions: positions}
}

// Load returns the status of key, creating an Idle one when absent.
func (m *Machine) Load(ctx context.Context, customSymbol string, key domain.StatusKey, now time.Time) (*domain.TradeStatus, error) {
	return m.statuses.GetOrCreate(ctx, customSymbol, key, now)
}

// Position returns the open position record of an Open status.
func (m *Machine) Position(ctx context.Context, ts *domain.TradeStatus) (*domain.OpenPositionRecord, error) {
	if ts.OpenPositionID == "" {
		return nil, fmt.Errorf("%s: %w", ts.Symbol, ErrNotOpen)
	}
	pos, ok, err := m.positions.GetPosition(ctx, ts.OpenPositionID)
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", ts.OpenPositionID, err)
	}
	if !ok {
		return nil, fmt.Errorf("position %s: %w", ts.OpenPositionID, storage.ErrNotFound)
	}
	return pos, nil
}

// Open persists an Open transition. A Closed status is reinstated first.
func (m *Machine) Open(ctx context.Context, ts *domain.TradeStatus, fill domain.Fill, oc *domain.OpenCondition, cc domain.CloseConditionState, tipID string) (*domain.TradeStatus, *domain.OpenPositionRecord, error) {
	res, err := Open(Reinstate(ts, fill.Time), fill, oc, cc, tipID)
	if err != nil {
		return nil, nil, err
	}
	if err := m.statuses.OpenPosition(ctx, res.Status, res.Position); err != nil {
		return nil, nil, fmt.Errorf("persist open %s: %w", ts.Symbol, err)
	}
	return res.Status, res.Position, nil
}

// Close persists a partial or full close.
func (m *Machine) Close(ctx context.Context, ts *domain.TradeStatus, fill domain.Fill, reason domain.CloseReason, msg string) (Closed, error) {
	pos, err := m.Position(ctx, ts)
	if err != nil {
		return Closed{}, err
	}
	res, err := Close(ts, pos, fill, reason, msg)
	if err != nil {
		return Closed{}, err
	}
	if err := m.statuses.ClosePosition(ctx, res.Status, res.Position, res.Close); err != nil {
		return Closed{}, fmt.Errorf("persist close %s: %w", ts.Symbol, err)
	}
	return res, nil
}

// UpdateCloseCondition persists a new close condition on an Open status.
func (m *Machine) UpdateCloseCondition(ctx context.Context, ts *domain.TradeStatus, cc domain.CloseConditionState, now time.Time) (*domain.TradeStatus, error) {
	if ts.State != domain.StateOpen {
		return nil, fmt.Errorf("%s: %w", ts.Symbol, ErrNotOpen)
	}
	next := ts.Clone()
	next.CloseCondition = cc
	next.LastModified = now
	if err := m.statuses.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save close condition %s: %w", ts.Symbol, err)
	}
	return next, nil
}

// ForceCloseout persists an administrative closeout.
func (m *Machine) ForceCloseout(ctx context.Context, ts *domain.TradeStatus, now time.Time) (*domain.TradeStatus, error) {
	next := ForceCloseout(ts, now)
	if err := m.statuses.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save closeout %s: %w", ts.Symbol, err)
	}
	return next, nil
}
