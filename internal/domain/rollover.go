package domain

import "time"

// JointSymbolRolloverState maps a continuous symbol, per strategy and direction,
// to its current and next traded contracts. Keyed by custom symbol.
type JointSymbolRolloverState struct {
	CustomSymbol     string // unique key
	ContinuousSymbol string // e.g. KQ.m@SHFE.rb
	Kind             StrategyKind
	Direction        Direction
	CurrentSymbol    string
	NextSymbol       string
	LastModified     time.Time
}

// SwitchRecord tracks one pending rollover from CurrentSymbol to NextSymbol.
// Unique on (custom_symbol, next_symbol).
type SwitchRecord struct {
	RecordID      string // deterministic hash of (custom_symbol, next_symbol)
	CustomSymbol  string
	CurrentSymbol string
	NextSymbol    string
	QuoteTime     time.Time
	Direction     Direction
	Kind          StrategyKind

	CurrentCloseDone bool // close leg completed
	NextNeedOpen     bool // successor was not already open when the rollover began
	NextOpenDone     bool // successor leg handled (deferred to the normal entry path)

	CurrentPositionID string // position being closed
	CloseVolumeID     string // close leg result
	NextPositionID    string // successor position, filled by the entry path
	CurrentVolume     int    // lots to close
}
