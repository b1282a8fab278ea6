package domain

import "time"

// MatchRecord is one captured indicator snapshot of a matched cascade.
// Corresponds to match_audit table (clickhouse).
type MatchRecord struct {
	RunID        string // backtest run id, empty in live modes
	CustomSymbol string
	Symbol       string
	Kind         StrategyKind
	Direction    Direction
	Snapshot     IndicatorSnapshot
	RecordedAt   time.Time
}

// MatchRecordsOf flattens an open condition into match records.
func MatchRecordsOf(runID string, ts *TradeStatus, oc *OpenCondition, at time.Time) []*MatchRecord {
	if oc == nil {
		return nil
	}
	var out []*MatchRecord
	for _, s := range []*IndicatorSnapshot{oc.Daily, oc.Hourly, oc.Minute30, oc.Minute5} {
		if s == nil {
			continue
		}
		out = append(out, &MatchRecord{
			RunID:        runID,
			CustomSymbol: ts.CustomSymbol,
			Symbol:       ts.Symbol,
			Kind:         ts.Kind,
			Direction:    ts.Direction,
			Snapshot:     *s,
			RecordedAt:   at,
		})
	}
	return out
}
