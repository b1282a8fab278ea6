package reporting

import "time"

// Report is the reversal tip report handed to the operator.
type Report struct {
	GeneratedAt  time.Time
	DailyBarTime time.Time // bar of the newest tips; zero when there are none

	Summary Summary
	Tips    []TipRow // sorted by symbol, then direction

	// Tips whose instrument has no stored config
	Unconfigured []string
}

// Summary counts the rows of a report.
type Summary struct {
	TotalTips    int
	LongTips     int
	ShortTips    int
	ApprovedTips int
}

// TipRow is one reversal tip with the instrument data needed to size the order.
type TipRow struct {
	TipID        string
	CustomSymbol string
	Symbol       string
	Name         string
	Direction    string
	Multiple     int
	OpenPosScale float64
	Volume       int
	ClosePrice   float64
	BarTime      time.Time
	NeedTrade    bool
	Count7d      int // tips of (symbol, direction) over the last seven days
}
