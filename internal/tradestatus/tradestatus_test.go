package tradestatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage/memory"
)

var t0 = time.Date(2023, 9, 4, 9, 30, 0, 0, domain.ExchangeTZ)

func idle() *domain.TradeStatus {
	return &domain.TradeStatus{
		CustomSymbol:   "SHFE_rb_main_long",
		Symbol:         "SHFE.rb2310",
		Kind:           domain.StrategyMain,
		Direction:      domain.Long,
		State:          domain.StateIdle,
		CloseCondition: domain.DefaultCloseCondition(),
	}
}

func fill(id string, volume int, offset time.Duration) domain.Fill {
	return domain.Fill{OrderID: id, Price: 3500, Volume: volume, Time: t0.Add(offset)}
}

func TestOpen_FromIdle(t *testing.T) {
	ts := idle()
	cc := domain.CloseConditionState{StopLossPrice: 3400, TakeProfitTrigger: 3800, Reason: domain.DefaultStopLossReason}

	res, err := Open(ts, fill("o1", 4, 0), &domain.OpenCondition{}, cc, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if res.Status.State != domain.StateOpen || res.Status.CarryingVolume != 4 {
		t.Errorf("unexpected status %+v", res.Status)
	}
	if res.Status.OpenPositionID != res.Position.PositionID {
		t.Error("status must reference the new position")
	}
	if res.Position.CloseCondition.StopLossPrice != 3400 {
		t.Error("position must embed the entry close condition")
	}
	if ts.State != domain.StateIdle {
		t.Error("input status was mutated")
	}
}

func TestOpen_RequiresIdle(t *testing.T) {
	ts := idle()
	ts.State = domain.StateOpen
	if _, err := Open(ts, fill("o1", 1, 0), nil, domain.DefaultCloseCondition(), ""); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle, got %v", err)
	}
	if _, err := Open(idle(), fill("o1", 0, 0), nil, domain.DefaultCloseCondition(), ""); !errors.Is(err, ErrEmptyFill) {
		t.Errorf("expected ErrEmptyFill, got %v", err)
	}
}

func TestClose_PartialThenFull(t *testing.T) {
	opened, err := Open(idle(), fill("o1", 5, 0), &domain.OpenCondition{}, domain.CloseConditionState{TakeProfitStage: 1}, "")
	if err != nil {
		t.Fatal(err)
	}
	ts, pos := opened.Status, opened.Position

	total := 0
	carry := ts.CarryingVolume
	for i, vol := range []int{2, 1, 2} {
		res, err := Close(ts, pos, fill("c"+string(rune('1'+i)), vol, time.Duration(i+1)*time.Hour), domain.CloseTakeProfit, "")
		if err != nil {
			t.Fatalf("close %d failed: %v", i, err)
		}
		if res.Status.CarryingVolume >= carry {
			t.Errorf("carrying volume must strictly decrease: %d -> %d", carry, res.Status.CarryingVolume)
		}
		if !Consistent(res.Status) {
			t.Errorf("inconsistent status after close %d: %+v", i, res.Status)
		}
		carry = res.Status.CarryingVolume
		total += res.Close.Volume
		ts, pos = res.Status, res.Position
	}

	if ts.State != domain.StateClosed {
		t.Errorf("expected Closed, got %s", ts.State)
	}
	if total != 5 {
		t.Errorf("close volumes sum to %d, want 5", total)
	}
	if !pos.IsClosed || len(pos.CloseIDs) != 3 {
		t.Errorf("unexpected position %+v", pos)
	}
	if ts.CloseCondition != domain.DefaultCloseCondition() {
		t.Errorf("close condition not reset: %+v", ts.CloseCondition)
	}
}

func TestClose_Errors(t *testing.T) {
	if _, err := Close(idle(), &domain.OpenPositionRecord{}, fill("c1", 1, 0), domain.CloseStopLoss, ""); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}

	opened, _ := Open(idle(), fill("o1", 2, 0), nil, domain.DefaultCloseCondition(), "")
	if _, err := Close(opened.Status, opened.Position, fill("c1", 3, time.Hour), domain.CloseStopLoss, ""); !errors.Is(err, ErrOverClose) {
		t.Errorf("expected ErrOverClose, got %v", err)
	}
}

func TestForceCloseoutAndReinstate(t *testing.T) {
	opened, _ := Open(idle(), fill("o1", 2, 0), &domain.OpenCondition{}, domain.CloseConditionState{HasTightened: true}, "")

	out := ForceCloseout(opened.Status, t0.Add(time.Hour))
	if out.State != domain.StateIdle || out.CarryingVolume != 0 || out.OpenPositionID != "" || out.OpenCondition != nil {
		t.Errorf("unexpected closeout %+v", out)
	}
	if out.CloseCondition.HasTightened {
		t.Error("close condition not reset")
	}

	closed := idle()
	closed.State = domain.StateClosed
	if got := Reinstate(closed, t0); got.State != domain.StateIdle {
		t.Errorf("expected Idle, got %s", got.State)
	}
	open := opened.Status
	if got := Reinstate(open, t0); got != open {
		t.Error("reinstate must leave an Open status alone")
	}
}

func TestMachine_Lifecycle(t *testing.T) {
	store := memory.NewTradeStore()
	m := NewMachine(store, store)
	ctx := context.Background()
	key := domain.StatusKey{Kind: domain.StrategyMain, Symbol: "SHFE.rb2310", Direction: domain.Long}

	ts, err := m.Load(ctx, "SHFE_rb_main_long", key, t0)
	if err != nil {
		t.Fatal(err)
	}
	ts, pos, err := m.Open(ctx, ts, fill("o1", 3, 0), &domain.OpenCondition{}, domain.DefaultCloseCondition(), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	res, err := m.Close(ctx, ts, fill("c1", 3, time.Hour), domain.CloseStopLoss, "stop loss")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !res.Final() {
		t.Error("expected final close")
	}

	stored, _, _ := store.Get(ctx, key)
	if stored.State != domain.StateClosed || stored.CarryingVolume != 0 {
		t.Errorf("unexpected stored status %+v", stored)
	}
	closes, _ := store.ListCloses(ctx, pos.PositionID)
	if len(closes) != 1 || closes[0].Reason != domain.CloseStopLoss {
		t.Errorf("unexpected closes %+v", closes)
	}

	// a closed status can open again
	if _, _, err := m.Open(ctx, stored, fill("o2", 1, 2*time.Hour), nil, domain.DefaultCloseCondition(), ""); err != nil {
		t.Errorf("reopen failed: %v", err)
	}
}

type failingStore struct {
	*memory.TradeStore
}

func (failingStore) OpenPosition(context.Context, *domain.TradeStatus, *domain.OpenPositionRecord) error {
	return errors.New("disk full")
}

func TestMachine_FailedPersistDoesNotApply(t *testing.T) {
	inner := memory.NewTradeStore()
	store := failingStore{inner}
	m := NewMachine(store, inner)
	ctx := context.Background()
	key := domain.StatusKey{Kind: domain.StrategyMain, Symbol: "SHFE.rb2310", Direction: domain.Long}

	ts, _ := m.Load(ctx, "SHFE_rb_main_long", key, t0)
	if _, _, err := m.Open(ctx, ts, fill("o1", 3, 0), nil, domain.DefaultCloseCondition(), ""); err == nil {
		t.Fatal("expected error")
	}
	if ts.State != domain.StateIdle {
		t.Error("caller status mutated")
	}
	stored, _, _ := inner.Get(ctx, key)
	if stored.State != domain.StateIdle {
		t.Errorf("store changed: %+v", stored)
	}
}
