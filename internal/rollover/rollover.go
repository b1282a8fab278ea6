// Package rollover migrates the trading state of a continuous symbol from an
// expiring contract to its successor.
//
// Ordering: the switch record is created and the outgoing close leg is made
// durable before the joint state advances and before the outgoing status is
// retired. A failure at any point leaves the outgoing status in place so the
// next tick can finish the switch from the record.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/idhash"
	"futures-trader/internal/logger"
	"futures-trader/internal/observability"
	"futures-trader/internal/storage"
	"futures-trader/internal/symbol"
	"futures-trader/internal/tradestatus"
)

// ErrNoUnderlying is returned when the quote of a continuous symbol does not
// name the contract it maps to.
var ErrNoUnderlying = errors.New("quote has no underlying contract")

// ErrPartialClose is returned when the rollover close left lots open. The
// switch record stays pending and the remainder is closed on the next tick.
var ErrPartialClose = errors.New("rollover close partially filled")

// ErrCloseUnrecorded is returned when the outgoing position is no longer open
// but no close that flattened it is stored.
var ErrCloseUnrecorded = errors.New("outgoing position has no recorded close")

// Closer closes positions. Implemented by the order orchestrator.
type Closer interface {
	Close(ctx context.Context, ts *domain.TradeStatus, volume int, reason domain.CloseReason, msg string) (tradestatus.Closed, error)
}

// Target identifies one (continuous symbol, strategy, direction).
type Target struct {
	CustomSymbol string
	Kind         domain.StrategyKind
	Direction    domain.Direction
	Config       *domain.FutureConfig
}

func (t Target) key(sym string) domain.StatusKey {
	return domain.StatusKey{Kind: t.Kind, Symbol: sym, Direction: t.Direction}
}

// Options configures a Protocol.
type Options struct {
	Statuses  storage.TradeStatusStore
	Positions storage.PositionStore
	Rollovers storage.RolloverStore
	Closer    Closer
	Metrics   *observability.Metrics
	Log       *logger.Logger
}

// Protocol runs contract switches.
type Protocol struct {
	statuses  storage.TradeStatusStore
	positions storage.PositionStore
	rollovers storage.RolloverStore
	closer    Closer
	machine   *tradestatus.Machine
	metrics   *observability.Metrics
	log       *logger.Logger
}

// New creates a Protocol.
func New(opts Options) *Protocol {
	if opts.Metrics == nil {
		opts.Metrics = observability.Discard()
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Protocol{
		statuses:  opts.Statuses,
		positions: opts.Positions,
		rollovers: opts.Rollovers,
		closer:    opts.Closer,
		machine:   tradestatus.NewMachine(opts.Statuses, opts.Positions),
		metrics:   opts.Metrics,
		log:       opts.Log.With("component", "rollover"),
	}
}

// State returns the joint state of t, creating it from the quote of the
// continuous symbol when absent.
func (p *Protocol) State(ctx context.Context, t Target, quote domain.Quote) (*domain.JointSymbolRolloverState, error) {
	st, ok, err := p.rollovers.GetState(ctx, t.CustomSymbol)
	if err != nil {
		return nil, fmt.Errorf("get rollover state %s: %w", t.CustomSymbol, err)
	}
	if ok {
		return st, nil
	}

	if quote.UnderlyingSymbol == "" {
		return nil, fmt.Errorf("%s: %w", quote.Symbol, ErrNoUnderlying)
	}
	next, err := symbol.NextContract(quote.UnderlyingSymbol, t.Config.MainMonths)
	if err != nil {
		return nil, err
	}
	st = &domain.JointSymbolRolloverState{
		CustomSymbol:     t.CustomSymbol,
		ContinuousSymbol: t.Config.Symbol,
		Kind:             t.Kind,
		Direction:        t.Direction,
		CurrentSymbol:    quote.UnderlyingSymbol,
		NextSymbol:       next,
		LastModified:     quote.Datetime,
	}
	if err := p.rollovers.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save rollover state %s: %w", t.CustomSymbol, err)
	}
	p.log.Infof("%s tracking %s, next %s", t.CustomSymbol, st.CurrentSymbol, st.NextSymbol)
	return st, nil
}

// Stored returns the persisted joint state of customSymbol without creating one.
func (p *Protocol) Stored(ctx context.Context, customSymbol string) (*domain.JointSymbolRolloverState, bool, error) {
	st, ok, err := p.rollovers.GetState(ctx, customSymbol)
	if err != nil {
		return nil, false, fmt.Errorf("get rollover state %s: %w", customSymbol, err)
	}
	return st, ok, nil
}

// ShouldSwitch reports whether the broker moved the continuous symbol away
// from the current contract and the contract is close enough to expiry.
// Open positions switch at trade_switch_day, idle ones before no_trade_switch_day.
func ShouldSwitch(current *domain.TradeStatus, quote domain.Quote, cfg *domain.FutureConfig) bool {
	if quote.UnderlyingSymbol == "" || quote.UnderlyingSymbol == current.Symbol {
		return false
	}
	if current.IsOpen() {
		return quote.ExpireRestDays <= cfg.TradeSwitchDay()
	}
	return quote.ExpireRestDays < cfg.NoTradeSwitchDay()
}

// Result describes what a Switch call did.
type Result struct {
	Switched bool
	Record   *domain.SwitchRecord // nil when no position was carried
	State    *domain.JointSymbolRolloverState
}

// Switch runs the rollover of t for the continuous quote. expireRestDays is
// taken from the quote of the current contract.
func (p *Protocol) Switch(ctx context.Context, t Target, quote domain.Quote, expireRestDays int) (Result, error) {
	st, err := p.State(ctx, t, quote)
	if err != nil {
		return Result{}, err
	}
	current, err := p.statuses.GetOrCreate(ctx, t.CustomSymbol, t.key(st.CurrentSymbol), quote.Datetime)
	if err != nil {
		return Result{}, fmt.Errorf("load current status %s: %w", st.CurrentSymbol, err)
	}

	q := quote
	q.ExpireRestDays = expireRestDays
	if !ShouldSwitch(current, q, t.Config) {
		return Result{State: st}, nil
	}

	newCurrent := quote.UnderlyingSymbol
	newNext, err := symbol.NextContract(newCurrent, t.Config.MainMonths)
	if err != nil {
		return Result{}, err
	}
	log := p.log.WithFields(map[string]interface{}{
		"custom_symbol": t.CustomSymbol,
		"from":          current.Symbol,
		"to":            newCurrent,
	})
	log.Infof("switching contract, %d days to expiry", expireRestDays)

	// A record left by an interrupted close wins over the status: the fill may
	// be persisted while the record still says the leg is pending.
	rec, pending, err := p.rollovers.GetPendingSwitch(ctx, t.CustomSymbol, current.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("get pending switch %s: %w", current.Symbol, err)
	}
	if !pending && current.IsOpen() {
		if rec, err = p.begin(ctx, t, current, newCurrent, quote.Datetime); err != nil {
			return Result{}, err
		}
	}
	if rec != nil {
		if rec, err = p.closeLeg(ctx, rec, current); err != nil {
			return Result{Record: rec, State: st}, err
		}
	}

	st, err = p.finish(ctx, t, st, newCurrent, newNext, quote.Datetime)
	if err != nil {
		return Result{Record: rec, State: st}, err
	}
	p.metrics.Rollovers.WithLabelValues(fmt.Sprint(rec != nil)).Inc()
	return Result{Switched: true, Record: rec, State: st}, nil
}

// begin creates the switch record, or loads the one left by an interrupted run.
func (p *Protocol) begin(ctx context.Context, t Target, current *domain.TradeStatus, next string, at time.Time) (*domain.SwitchRecord, error) {
	successor, err := p.statuses.GetOrCreate(ctx, t.CustomSymbol, t.key(next), at)
	if err != nil {
		return nil, fmt.Errorf("load successor status %s: %w", next, err)
	}

	rec := &domain.SwitchRecord{
		RecordID:          idhash.ComputeSwitchRecordID(t.CustomSymbol, next),
		CustomSymbol:      t.CustomSymbol,
		CurrentSymbol:     current.Symbol,
		NextSymbol:        next,
		QuoteTime:         at,
		Direction:         t.Direction,
		Kind:              t.Kind,
		NextNeedOpen:      !successor.IsOpen(),
		CurrentPositionID: current.OpenPositionID,
		CurrentVolume:     current.CarryingVolume,
	}
	err = p.rollovers.CreateSwitchRecord(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		existing, ok, gerr := p.rollovers.GetSwitchRecord(ctx, t.CustomSymbol, next)
		if gerr != nil {
			return nil, fmt.Errorf("load switch record %s: %w", next, gerr)
		}
		if ok {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create switch record %s: %w", next, err)
	}
	return rec, nil
}

// closeLeg closes the outgoing position and records the close on rec. The
// leg is done only once the position is flat and its close id is known.
func (p *Protocol) closeLeg(ctx context.Context, rec *domain.SwitchRecord, current *domain.TradeStatus) (*domain.SwitchRecord, error) {
	if rec.CurrentCloseDone {
		return rec, nil
	}

	done := *rec
	if current.IsOpen() {
		res, err := p.closer.Close(ctx, current, current.CarryingVolume, domain.CloseRollover, "contract rollover")
		if err != nil {
			return rec, fmt.Errorf("rollover close %s: %w", current.Symbol, err)
		}
		if !res.Final() {
			return rec, fmt.Errorf("rollover close %s: %w (%d lots left)", current.Symbol, ErrPartialClose, res.Status.CarryingVolume)
		}
		done.CloseVolumeID = res.Close.CloseID
	} else {
		id, err := p.recordedClose(ctx, rec)
		if err != nil {
			return rec, err
		}
		done.CloseVolumeID = id
	}
	done.CurrentCloseDone = true
	if err := p.rollovers.UpdateSwitchRecord(ctx, &done); err != nil {
		return rec, fmt.Errorf("update switch record %s: %w", rec.NextSymbol, err)
	}
	return &done, nil
}

// recordedClose returns the close that flattened the outgoing position of rec,
// preferring a rollover close. It covers a close persisted before the record
// was updated.
func (p *Protocol) recordedClose(ctx context.Context, rec *domain.SwitchRecord) (string, error) {
	pos, ok, err := p.positions.GetPosition(ctx, rec.CurrentPositionID)
	if err != nil {
		return "", fmt.Errorf("get position %s: %w", rec.CurrentPositionID, err)
	}
	if !ok || !pos.IsClosed {
		return "", fmt.Errorf("position %s: %w", rec.CurrentPositionID, ErrCloseUnrecorded)
	}
	closes, err := p.positions.ListCloses(ctx, pos.PositionID)
	if err != nil {
		return "", fmt.Errorf("list closes %s: %w", pos.PositionID, err)
	}
	if len(closes) == 0 {
		return "", fmt.Errorf("position %s: %w", pos.PositionID, ErrCloseUnrecorded)
	}
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i].Reason == domain.CloseRollover {
			return closes[i].CloseID, nil
		}
	}
	return closes[len(closes)-1].CloseID, nil
}

// finish advances the joint state, retires superseded statuses and creates
// the statuses of the new pair.
func (p *Protocol) finish(ctx context.Context, t Target, st *domain.JointSymbolRolloverState, current, next string, at time.Time) (*domain.JointSymbolRolloverState, error) {
	advanced := *st
	advanced.CurrentSymbol = current
	advanced.NextSymbol = next
	advanced.LastModified = at
	if err := p.rollovers.SaveState(ctx, &advanced); err != nil {
		return st, fmt.Errorf("save rollover state %s: %w", t.CustomSymbol, err)
	}

	keep := []string{current, next}
	statuses, err := p.statuses.ListByCustomSymbol(ctx, t.CustomSymbol)
	if err != nil {
		return &advanced, fmt.Errorf("list statuses %s: %w", t.CustomSymbol, err)
	}
	for _, ts := range statuses {
		if ts.Symbol == current || ts.Symbol == next || !ts.IsOpen() {
			continue
		}
		// The position record stays open without an owning status: it is the
		// audit trail of lots no status tracks any more.
		p.log.Warnf("%s: retiring open status of %s without a close", t.CustomSymbol, ts.Symbol)
		if _, err := p.machine.ForceCloseout(ctx, ts, at); err != nil {
			return &advanced, err
		}
	}
	if _, err := p.statuses.Retire(ctx, t.CustomSymbol, keep); err != nil {
		return &advanced, fmt.Errorf("retire statuses %s: %w", t.CustomSymbol, err)
	}

	for _, sym := range keep {
		if _, err := p.statuses.GetOrCreate(ctx, t.CustomSymbol, t.key(sym), at); err != nil {
			return &advanced, fmt.Errorf("create status %s: %w", sym, err)
		}
	}
	return &advanced, nil
}

// Resume completes an interrupted switch away from ts.Symbol: it retries the
// close leg and, when the joint state still points at ts.Symbol, finishes the
// switch. It reports whether a pending record was found.
func (p *Protocol) Resume(ctx context.Context, t Target, ts *domain.TradeStatus, at time.Time) (bool, error) {
	rec, ok, err := p.rollovers.GetPendingSwitch(ctx, t.CustomSymbol, ts.Symbol)
	if err != nil {
		return false, fmt.Errorf("get pending switch %s: %w", ts.Symbol, err)
	}
	if !ok {
		return false, nil
	}
	p.log.Infof("%s: resuming switch %s -> %s", t.CustomSymbol, rec.CurrentSymbol, rec.NextSymbol)

	if _, err := p.closeLeg(ctx, rec, ts); err != nil {
		return true, err
	}

	st, ok, err := p.rollovers.GetState(ctx, t.CustomSymbol)
	if err != nil {
		return true, fmt.Errorf("get rollover state %s: %w", t.CustomSymbol, err)
	}
	if !ok {
		return true, nil
	}

	// State already advanced: only the retirement of the old contract is left.
	if st.CurrentSymbol != rec.CurrentSymbol {
		_, err := p.finish(ctx, t, st, st.CurrentSymbol, st.NextSymbol, at)
		return true, err
	}
	next, err := symbol.NextContract(rec.NextSymbol, t.Config.MainMonths)
	if err != nil {
		return true, err
	}
	if _, err := p.finish(ctx, t, st, rec.NextSymbol, next, at); err != nil {
		return true, err
	}
	p.metrics.Rollovers.WithLabelValues("true").Inc()
	return true, nil
}

// MarkOpened records that the deferred successor leg of a switch into sym
// opened through the normal entry path.
func (p *Protocol) MarkOpened(ctx context.Context, t Target, sym, positionID string) error {
	rec, ok, err := p.rollovers.GetSwitchRecord(ctx, t.CustomSymbol, sym)
	if err != nil {
		return fmt.Errorf("get switch record %s: %w", sym, err)
	}
	if !ok || !rec.NextNeedOpen || rec.NextOpenDone {
		return nil
	}
	rec.NextOpenDone = true
	rec.NextPositionID = positionID
	if err := p.rollovers.UpdateSwitchRecord(ctx, rec); err != nil {
		return fmt.Errorf("update switch record %s: %w", sym, err)
	}
	return nil
}
