package domain

import "fmt"

// StrategyKind identifies a strategy family.
type StrategyKind string

// Strategy kinds.
const (
	StrategyMain   StrategyKind = "main"   // trend following
	StrategyBottom StrategyKind = "bottom" // reversal, tip driven
)

// ParseStrategyKind parses a strategy kind name.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch StrategyKind(s) {
	case StrategyMain, StrategyBottom:
		return StrategyKind(s), nil
	default:
		return "", fmt.Errorf("unknown strategy kind %q", s)
	}
}

// Direction is the trade direction of a strategy.
type Direction int

// Directions. Values match the persisted representation.
const (
	Short Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	if d == Long {
		return "long"
	}
	return "short"
}

// OpenSide returns the order side that opens a position.
func (d Direction) OpenSide() OrderSide {
	if d == Long {
		return SideBuy
	}
	return SideSell
}

// CloseSide returns the order side that closes a position.
func (d Direction) CloseSide() OrderSide {
	if d == Long {
		return SideSell
	}
	return SideBuy
}

// TradeDirection is the configured direction set: short, long or both.
type TradeDirection int

// Configured direction sets.
const (
	TradeShort TradeDirection = 0
	TradeLong  TradeDirection = 1
	TradeBoth  TradeDirection = 2
)

// Directions expands the set.
func (t TradeDirection) Directions() []Direction {
	switch t {
	case TradeShort:
		return []Direction{Short}
	case TradeLong:
		return []Direction{Long}
	default:
		return []Direction{Long, Short}
	}
}

func (t TradeDirection) String() string {
	switch t {
	case TradeShort:
		return "short"
	case TradeLong:
		return "long"
	default:
		return "long+short"
	}
}
