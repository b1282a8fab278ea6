// Package lookup locates bars in time-ordered series.
package lookup

import (
	"errors"
	"sort"
	"time"

	"futures-trader/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoBarData = errors.New("no bar data available")
)

// BarAtOrBefore returns the index of the last bar whose time is at or before target.
// ok is false when every bar is after target.
// Returns ErrNoBarData if bars is empty.
func BarAtOrBefore(target time.Time, bars []domain.Bar) (idx int, ok bool, err error) {
	if len(bars) == 0 {
		return 0, false, ErrNoBarData
	}

	// first bar strictly after target
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Time.After(target)
	})
	if i == 0 {
		return 0, false, nil
	}
	return i - 1, true, nil
}

// BarBefore returns the index of the last bar strictly before target.
func BarBefore(target time.Time, bars []domain.Bar) (idx int, ok bool, err error) {
	if len(bars) == 0 {
		return 0, false, ErrNoBarData
	}

	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Time.Before(target)
	})
	if i == 0 {
		return 0, false, nil
	}
	return i - 1, true, nil
}

// ClosedIndex returns the index of the reference bar: the last closed bar while the
// session is running (the newest bar is still forming), the newest bar otherwise.
func ClosedIndex(bars []domain.Bar, inSession bool) (int, bool) {
	n := len(bars)
	if inSession {
		n--
	}
	if n <= 0 {
		return 0, false
	}
	return n - 1, true
}
