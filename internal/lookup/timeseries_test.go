package lookup

import (
	"testing"
	"time"

	"futures-trader/internal/domain"
)

func makeBars(start time.Time, step time.Duration, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{ID: int64(i), Time: start.Add(time.Duration(i) * step), Close: float64(i)}
	}
	return bars
}

func TestBarAtOrBefore_EmptySlice(t *testing.T) {
	_, _, err := BarAtOrBefore(time.Now(), nil)
	if err != ErrNoBarData {
		t.Errorf("expected ErrNoBarData, got %v", err)
	}
}

func TestBarAtOrBefore_ExactMatch(t *testing.T) {
	start := time.Date(2023, 9, 1, 9, 0, 0, 0, domain.ExchangeTZ)
	bars := makeBars(start, 30*time.Minute, 5)

	idx, ok, err := BarAtOrBefore(start.Add(time.Hour), bars)
	if err != nil || !ok {
		t.Fatalf("unexpected result ok=%v err=%v", ok, err)
	}
	if idx != 2 {
		t.Errorf("expected index 2, got %d", idx)
	}
}

func TestBarAtOrBefore_BetweenBars(t *testing.T) {
	start := time.Date(2023, 9, 1, 9, 0, 0, 0, domain.ExchangeTZ)
	bars := makeBars(start, 30*time.Minute, 5)

	idx, ok, _ := BarAtOrBefore(start.Add(70*time.Minute), bars)
	if !ok || idx != 2 {
		t.Errorf("expected index 2, got %d (ok=%v)", idx, ok)
	}
}

func TestBarAtOrBefore_BeforeFirst(t *testing.T) {
	start := time.Date(2023, 9, 1, 9, 0, 0, 0, domain.ExchangeTZ)
	bars := makeBars(start, 30*time.Minute, 5)

	_, ok, err := BarAtOrBefore(start.Add(-time.Minute), bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no bar before the first one")
	}
}

func TestBarBefore_Strict(t *testing.T) {
	start := time.Date(2023, 9, 1, 9, 0, 0, 0, domain.ExchangeTZ)
	bars := makeBars(start, 30*time.Minute, 5)

	idx, ok, _ := BarBefore(start.Add(time.Hour), bars)
	if !ok || idx != 1 {
		t.Errorf("expected index 1, got %d (ok=%v)", idx, ok)
	}
}

func TestClosedIndex(t *testing.T) {
	bars := makeBars(time.Now(), time.Hour, 3)

	if idx, ok := ClosedIndex(bars, true); !ok || idx != 1 {
		t.Errorf("in session: got %d (ok=%v), want 1", idx, ok)
	}
	if idx, ok := ClosedIndex(bars, false); !ok || idx != 2 {
		t.Errorf("out of session: got %d (ok=%v), want 2", idx, ok)
	}
	if _, ok := ClosedIndex(bars[:1], true); ok {
		t.Error("single forming bar has no closed bar")
	}
}
