package domain

import "time"

// LongScales holds long-side price scales, multiplied by BaseScale.
type LongScales struct {
	BaseScale         float64 `yaml:"base_scale" json:"base_scale"`
	StopLossScale     float64 `yaml:"stop_loss_scale" json:"stop_loss_scale"`
	ProfitStartScale1 float64 `yaml:"profit_start_scale_1" json:"profit_start_scale_1"`
	ProfitStartScale2 float64 `yaml:"profit_start_scale_2" json:"profit_start_scale_2"`
	PromoteScale1     float64 `yaml:"promote_scale_1" json:"promote_scale_1"`
	PromoteScale2     float64 `yaml:"promote_scale_2" json:"promote_scale_2"`
	PromoteTarget1    float64 `yaml:"promote_target_1" json:"promote_target_1"`
	PromoteTarget2    float64 `yaml:"promote_target_2" json:"promote_target_2"`
}

// ShortScales holds short-side price scales, multiplied by BaseScale.
type ShortScales struct {
	BaseScale        float64 `yaml:"base_scale" json:"base_scale"`
	StopLossScale    float64 `yaml:"stop_loss_scale" json:"stop_loss_scale"`
	ProfitStartScale float64 `yaml:"profit_start_scale" json:"profit_start_scale"`
	PromoteScale     float64 `yaml:"promote_scale" json:"promote_scale"`
	PromoteTarget    float64 `yaml:"promote_target" json:"promote_target"`
}

// FutureConfig is the per-instrument configuration.
type FutureConfig struct {
	Symbol       string      `yaml:"symbol" json:"symbol"` // continuous symbol, e.g. KQ.m@SHFE.rb
	Name         string      `yaml:"name" json:"name"`
	IsActive     bool        `yaml:"is_active" json:"is_active"`
	Multiple     int         `yaml:"multiple" json:"multiple"` // contract multiplier
	OpenPosScale float64     `yaml:"-" json:"open_pos_scale"`  // share of balance per position
	SwitchDays   [2]int      `yaml:"switch_days" json:"switch_days"`
	MainMonths   []int       `yaml:"main_symbols" json:"main_months"`
	Long         LongScales  `yaml:"long" json:"long"`
	Short        ShortScales `yaml:"short" json:"short"`
}

// TradeSwitchDay is the rollover threshold while a position is open.
func (f *FutureConfig) TradeSwitchDay() int { return f.SwitchDays[0] }

// NoTradeSwitchDay is the rollover threshold while no position is open.
func (f *FutureConfig) NoTradeSwitchDay() int { return f.SwitchDays[1] }

// BaseScale returns the base scale of a direction.
func (f *FutureConfig) BaseScale(d Direction) float64 {
	if d == Long {
		return f.Long.BaseScale
	}
	return f.Short.BaseScale
}

// Mode is the execution mode of a running instance.
type Mode string

// Execution modes.
const (
	ModeSim      Mode = "sim"
	ModeBroker   Mode = "broker"
	ModeBacktest Mode = "backtest"
)

// TradeConfig is the account-level trade configuration.
type TradeConfig struct {
	Direction      TradeDirection
	Mode           Mode
	AccountBalance float64
	Strategies     []StrategyKind
	BacktestStart  time.Time
	BacktestEnd    time.Time
}

// IsBacktest reports whether notifications and live-only side effects are disabled.
func (t TradeConfig) IsBacktest() bool {
	return t.Mode == ModeBacktest
}
