package idhash

import (
	"testing"
	"time"

	"futures-trader/internal/domain"
)

func TestComputeTipID(t *testing.T) {
	bar := time.Date(2023, 9, 14, 0, 0, 0, 0, domain.ExchangeTZ)

	got := ComputeTipID("SHFE_rb_bottom_long", "SHFE.rb2401", bar)
	if len(got) != 64 {
		t.Errorf("ComputeTipID() length = %d, want 64", len(got))
	}

	// same trading day, later evaluation
	later := bar.Add(15 * time.Hour)
	if again := ComputeTipID("SHFE_rb_bottom_long", "SHFE.rb2401", later); again != got {
		t.Errorf("ComputeTipID() differs within the same day: %s != %s", again, got)
	}

	if next := ComputeTipID("SHFE_rb_bottom_long", "SHFE.rb2401", bar.AddDate(0, 0, 1)); next == got {
		t.Error("ComputeTipID() should differ for a different daily bar")
	}
	if other := ComputeTipID("SHFE_rb_bottom_short", "SHFE.rb2401", bar); other == got {
		t.Error("ComputeTipID() should differ for a different custom symbol")
	}
}

func TestComputePositionID_DifferentInputs(t *testing.T) {
	a := ComputePositionID("SHFE_rb_main_long", "SHFE.rb2401", "order-1")
	b := ComputePositionID("SHFE_rb_main_long", "SHFE.rb2401", "order-2")
	if a == b {
		t.Error("different orders produced the same position id")
	}
	if a != ComputePositionID("SHFE_rb_main_long", "SHFE.rb2401", "order-1") {
		t.Error("ComputePositionID() not deterministic")
	}
}

func TestComputeCloseID(t *testing.T) {
	pos := ComputePositionID("SHFE_rb_main_long", "SHFE.rb2401", "order-1")
	c1 := ComputeCloseID(pos, "order-2")
	c2 := ComputeCloseID(pos, "order-3")
	if c1 == c2 {
		t.Error("different close orders produced the same close id")
	}
	if len(c1) != 64 {
		t.Errorf("ComputeCloseID() length = %d, want 64", len(c1))
	}
}

func TestComputeSwitchRecordID(t *testing.T) {
	a := ComputeSwitchRecordID("SHFE_rb_main_long", "SHFE.rb2405")
	if a != ComputeSwitchRecordID("SHFE_rb_main_long", "SHFE.rb2405") {
		t.Error("ComputeSwitchRecordID() not deterministic")
	}
	if a == ComputeSwitchRecordID("SHFE_rb_main_long", "SHFE.rb2409") {
		t.Error("different transitions produced the same record id")
	}
}
