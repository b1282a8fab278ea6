package pricing

import (
	"math"
	"testing"
	"time"

	"futures-trader/internal/domain"
)

func TestAdjustedPrice_OpenLong(t *testing.T) {
	stop := AdjustedPrice(1000, 0.03, 1, false)
	if stop != 970 {
		t.Errorf("stop-loss: expected 970, got %v", stop)
	}
	trigger := AdjustedPrice(1000, 0.03, 3, true)
	if trigger != 1090 {
		t.Errorf("take-profit trigger: expected 1090, got %v", trigger)
	}
}

func TestAdjustedPrice_SignAndDeterminism(t *testing.T) {
	tests := []struct {
		fill, base, mult float64
	}{
		{3521, 0.02, 1.5},
		{87.35, 0.01, 2},
		{15230.5, 0.005, 4},
	}
	for _, tt := range tests {
		up := AdjustedPrice(tt.fill, tt.base, tt.mult, true)
		down := AdjustedPrice(tt.fill, tt.base, tt.mult, false)
		if up-tt.fill <= 0 {
			t.Errorf("up adjustment of %v not above fill: %v", tt.fill, up)
		}
		if down-tt.fill >= 0 {
			t.Errorf("down adjustment of %v not below fill: %v", tt.fill, down)
		}
		if again := AdjustedPrice(tt.fill, tt.base, tt.mult, true); again != up {
			t.Errorf("non-deterministic: %v != %v", again, up)
		}
		if math.Abs(up*100-math.Round(up*100)) > 1e-6 {
			t.Errorf("not rounded to 2 decimals: %v", up)
		}
	}
}

func TestDiffPct(t *testing.T) {
	if got := DiffPct(101, 100); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := DiffPct(99, 100); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := DiffPct(100.12345, 100); got != 0.123 {
		t.Errorf("expected 0.123, got %v", got)
	}
	if got := DiffPct(1, 0); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf for zero base, got %v", got)
	}
}

func TestPositionSize(t *testing.T) {
	// 100000 * 0.1 / 10 / 3500 = 0.2857 -> 1
	if got := PositionSize(100000, 0.1, 10, 3500); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	// 1000000 * 0.2 / 5 / 4000 = 10 exactly
	if got := PositionSize(1000000, 0.2, 5, 4000); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if got := PositionSize(100000, 0.1, 0, 3500); got != 0 {
		t.Errorf("expected 0 for zero multiple, got %d", got)
	}
}

func TestIsLastFiveMinutes(t *testing.T) {
	at := func(h, m, s int) time.Time {
		return time.Date(2023, 9, 1, h, m, s, 0, domain.ExchangeTZ)
	}
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"boundary start", at(14, 55, 0), false},
		{"just after start", at(14, 55, 1), true},
		{"middle", at(14, 58, 30), true},
		{"boundary end", at(15, 0, 0), false},
		{"morning", at(10, 0, 0), false},
		{"utc input", at(14, 57, 0).UTC(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLastFiveMinutes(tt.t); got != tt.want {
				t.Errorf("IsLastFiveMinutes(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestSessionDay(t *testing.T) {
	night := time.Date(2023, 8, 31, 21, 0, 0, 0, domain.ExchangeTZ)
	want := time.Date(2023, 9, 1, 0, 0, 0, 0, domain.ExchangeTZ)
	if got := SessionDay(night); !got.Equal(want) {
		t.Errorf("night bar: got %v, want %v", got, want)
	}

	// Friday night belongs to Monday.
	friday := time.Date(2023, 9, 1, 22, 30, 0, 0, domain.ExchangeTZ)
	want = time.Date(2023, 9, 4, 0, 0, 0, 0, domain.ExchangeTZ)
	if got := SessionDay(friday); !got.Equal(want) {
		t.Errorf("friday night bar: got %v, want %v", got, want)
	}

	day := time.Date(2023, 9, 1, 14, 30, 0, 0, domain.ExchangeTZ)
	want = time.Date(2023, 9, 1, 0, 0, 0, 0, domain.ExchangeTZ)
	if got := SessionDay(day); !got.Equal(want) {
		t.Errorf("day bar: got %v, want %v", got, want)
	}
}

func TestIsAfterSession(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2023, 9, 1, h, m, 0, 0, domain.ExchangeTZ) }
	tests := []struct {
		t    time.Time
		want bool
	}{
		{at(14, 59), false},
		{at(15, 0), true},
		{at(18, 30), true},
		{at(20, 59), true},
		{at(21, 0), false},
		{at(9, 0), false},
	}
	for _, tt := range tests {
		if got := IsAfterSession(tt.t); got != tt.want {
			t.Errorf("IsAfterSession(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}
