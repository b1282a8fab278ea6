// Package tradestatus owns the Idle -> Open -> Closed lifecycle of a TradeStatus.
//
// Transitions are pure functions over copies: they return the next status and
// the records to persist, and leave their inputs untouched. Machine persists
// each transition as one durable unit, so a failed write never applies.
package tradestatus

import (
	"errors"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/idhash"
)

// Transition errors.
var (
	ErrNotIdle     = errors.New("trade status is not idle")
	ErrNotOpen     = errors.New("trade status is not open")
	ErrOverClose   = errors.New("close volume exceeds carrying volume")
	ErrEmptyFill   = errors.New("fill volume must be positive")
	ErrMissingFill = errors.New("fill required")
)

// Opened is the result of an Open transition.
type Opened struct {
	Status   *domain.TradeStatus
	Position *domain.OpenPositionRecord
}

// Open transitions an Idle status to Open with the given fill.
func Open(ts *domain.TradeStatus, fill domain.Fill, oc *domain.OpenCondition, cc domain.CloseConditionState, tipID string) (Opened, error) {
	if ts.State != domain.StateIdle {
		return Opened{}, fmt.Errorf("%s %s: %w (state %s)", ts.Symbol, ts.Direction, ErrNotIdle, ts.State)
	}
	if fill.Volume <= 0 {
		return Opened{}, ErrEmptyFill
	}

	next := ts.Clone()
	pos := &domain.OpenPositionRecord{
		PositionID:     idhash.ComputePositionID(ts.CustomSymbol, ts.Symbol, fill.OrderID),
		CustomSymbol:   ts.CustomSymbol,
		Symbol:         ts.Symbol,
		Kind:           ts.Kind,
		Direction:      ts.Direction,
		TradePrice:     fill.Price,
		Volume:         fill.Volume,
		TradeTime:      fill.Time,
		OrderID:        fill.OrderID,
		OpenCondition:  oc.Clone(),
		CloseCondition: cc,
		TipID:          tipID,
	}

	next.State = domain.StateOpen
	next.CarryingVolume = fill.Volume
	next.StartTime = fill.Time
	next.EndTime = time.Time{}
	next.LastModified = fill.Time
	next.OpenCondition = oc.Clone()
	next.CloseCondition = cc
	next.OpenPositionID = pos.PositionID
	return Opened{Status: next, Position: pos}, nil
}

// Closed is the result of a Close transition.
type Closed struct {
	Status   *domain.TradeStatus
	Position *domain.OpenPositionRecord
	Close    *domain.CloseVolumeRecord
}

// Final reports whether the close flattened the position.
func (c Closed) Final() bool {
	return c.Status.State == domain.StateClosed
}

// Close applies a partial or full close to an Open status and its position.
// When the carrying volume reaches zero the status becomes Closed and the
// close condition is reset.
func Close(ts *domain.TradeStatus, pos *domain.OpenPositionRecord, fill domain.Fill, reason domain.CloseReason, msg string) (Closed, error) {
	if ts.State != domain.StateOpen {
		return Closed{}, fmt.Errorf("%s %s: %w (state %s)", ts.Symbol, ts.Direction, ErrNotOpen, ts.State)
	}
	if pos == nil {
		return Closed{}, ErrMissingFill
	}
	if fill.Volume <= 0 {
		return Closed{}, ErrEmptyFill
	}
	if fill.Volume > ts.CarryingVolume {
		return Closed{}, fmt.Errorf("%s: %w (%d > %d)", ts.Symbol, ErrOverClose, fill.Volume, ts.CarryingVolume)
	}

	next := ts.Clone()
	nextPos := pos.Clone()
	cv := &domain.CloseVolumeRecord{
		CloseID:    idhash.ComputeCloseID(pos.PositionID, fill.OrderID),
		PositionID: pos.PositionID,
		Symbol:     ts.Symbol,
		Direction:  ts.Direction,
		TradePrice: fill.Price,
		Volume:     fill.Volume,
		TradeTime:  fill.Time,
		OrderID:    fill.OrderID,
		Reason:     reason,
		Message:    msg,
	}

	nextPos.CloseIDs = append(nextPos.CloseIDs, cv.CloseID)
	next.CarryingVolume -= fill.Volume
	next.LastModified = fill.Time
	if next.CarryingVolume == 0 {
		next.State = domain.StateClosed
		next.EndTime = fill.Time
		next.CloseCondition = domain.DefaultCloseCondition()
		next.OpenPositionID = ""
		nextPos.IsClosed = true
	}
	return Closed{Status: next, Position: nextPos, Close: cv}, nil
}

// ForceCloseout clears a status back to an Idle equivalent without an order.
// Used when a superseded contract is retired.
func ForceCloseout(ts *domain.TradeStatus, now time.Time) *domain.TradeStatus {
	next := ts.Clone()
	next.State = domain.StateIdle
	next.CarryingVolume = 0
	next.EndTime = now
	next.LastModified = now
	next.OpenPositionID = ""
	next.OpenCondition = nil
	next.CloseCondition = domain.DefaultCloseCondition()
	return next
}

// Reinstate returns a Closed status to Idle so the symbol can trade again.
// Other states are returned unchanged.
func Reinstate(ts *domain.TradeStatus, now time.Time) *domain.TradeStatus {
	if ts.State != domain.StateClosed {
		return ts
	}
	next := ts.Clone()
	next.State = domain.StateIdle
	next.OpenCondition = nil
	next.LastModified = now
	return next
}

// Consistent reports whether the carrying volume agrees with the state.
func Consistent(ts *domain.TradeStatus) bool {
	switch ts.State {
	case domain.StateOpen:
		return ts.CarryingVolume > 0 && ts.OpenPositionID != ""
	default:
		return ts.CarryingVolume == 0
	}
}
