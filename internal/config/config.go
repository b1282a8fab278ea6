// Package config loads the trade and instrument configuration.
//
// The YAML file carries a trade section, the shared open_pos_scale and the
// futures list. Instrument configs are seeded into a storage.ConfigStore; an
// entry already in the store wins over the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
	"futures-trader/internal/storage"
	"futures-trader/internal/symbol"
)

// DefaultAccountBalance is used when the trade section omits the balance.
const DefaultAccountBalance = 100000

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the loaded configuration.
type Config struct {
	Trade   domain.TradeConfig
	Futures []*domain.FutureConfig
}

type file struct {
	Trade        tradeSection          `yaml:"trade"`
	OpenPosScale float64               `yaml:"open_pos_scale"`
	Futures      []domain.FutureConfig `yaml:"futures"`
}

type tradeSection struct {
	Direction      *int     `yaml:"direction"`
	Mode           string   `yaml:"mode"`
	AccountBalance float64  `yaml:"account_balance"`
	Strategies     []string `yaml:"strategies"`
	BacktestDays   struct {
		StartDate string `yaml:"start_date"`
		EndDate   string `yaml:"end_date"`
	} `yaml:"backtest_days"`
}

// LoadEnv loads .env files without overriding variables already set.
// Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Env returns the variable or def when unset.
func Env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	trade, err := f.Trade.toDomain()
	if err != nil {
		return nil, err
	}

	if f.OpenPosScale <= 0 || f.OpenPosScale > 1 {
		return nil, fmt.Errorf("%w: open_pos_scale must be in (0, 1], got %v", ErrInvalid, f.OpenPosScale)
	}

	futures := make([]*domain.FutureConfig, 0, len(f.Futures))
	seen := make(map[string]bool, len(f.Futures))
	for i := range f.Futures {
		fc := f.Futures[i]
		fc.OpenPosScale = f.OpenPosScale
		if err := ValidateFuture(&fc); err != nil {
			return nil, fmt.Errorf("futures[%d]: %w", i, err)
		}
		if seen[fc.Symbol] {
			return nil, fmt.Errorf("%w: futures[%d]: duplicate symbol %s", ErrInvalid, i, fc.Symbol)
		}
		seen[fc.Symbol] = true
		futures = append(futures, &fc)
	}

	return &Config{Trade: trade, Futures: futures}, nil
}

func (t tradeSection) toDomain() (domain.TradeConfig, error) {
	out := domain.TradeConfig{
		Direction:      domain.TradeBoth,
		Mode:           domain.ModeSim,
		AccountBalance: t.AccountBalance,
	}

	if t.Direction != nil {
		d := domain.TradeDirection(*t.Direction)
		if d != domain.TradeShort && d != domain.TradeLong && d != domain.TradeBoth {
			return out, fmt.Errorf("%w: trade.direction must be 0, 1 or 2, got %d", ErrInvalid, *t.Direction)
		}
		out.Direction = d
	}

	if t.Mode != "" {
		switch m := domain.Mode(t.Mode); m {
		case domain.ModeSim, domain.ModeBroker, domain.ModeBacktest:
			out.Mode = m
		default:
			return out, fmt.Errorf("%w: trade.mode %q", ErrInvalid, t.Mode)
		}
	}

	if out.AccountBalance == 0 {
		out.AccountBalance = DefaultAccountBalance
	}
	if out.AccountBalance < 0 {
		return out, fmt.Errorf("%w: trade.account_balance must be positive", ErrInvalid)
	}

	if len(t.Strategies) == 0 {
		t.Strategies = []string{string(domain.StrategyMain)}
	}
	for _, s := range lo.Uniq(t.Strategies) {
		kind, err := domain.ParseStrategyKind(s)
		if err != nil {
			return out, fmt.Errorf("%w: trade.strategies: %v", ErrInvalid, err)
		}
		out.Strategies = append(out.Strategies, kind)
	}

	var err error
	if out.BacktestStart, err = parseDate("trade.backtest_days.start_date", t.BacktestDays.StartDate); err != nil {
		return out, err
	}
	if out.BacktestEnd, err = parseDate("trade.backtest_days.end_date", t.BacktestDays.EndDate); err != nil {
		return out, err
	}
	if out.IsBacktest() {
		if out.BacktestStart.IsZero() || out.BacktestEnd.IsZero() {
			return out, fmt.Errorf("%w: backtest mode needs trade.backtest_days", ErrInvalid)
		}
		if !out.BacktestEnd.After(out.BacktestStart) {
			return out, fmt.Errorf("%w: trade.backtest_days.end_date must be after start_date", ErrInvalid)
		}
	}
	return out, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, domain.ExchangeTZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	return t, nil
}

// ValidateFuture checks one instrument config.
func ValidateFuture(fc *domain.FutureConfig) error {
	if !symbol.IsContinuous(fc.Symbol) {
		return fmt.Errorf("%w: symbol %q is not a continuous symbol", ErrInvalid, fc.Symbol)
	}
	if fc.Multiple <= 0 {
		return fmt.Errorf("%w: %s: multiple must be positive", ErrInvalid, fc.Symbol)
	}
	if fc.TradeSwitchDay() < 0 || fc.NoTradeSwitchDay() < 0 {
		return fmt.Errorf("%w: %s: switch_days must not be negative", ErrInvalid, fc.Symbol)
	}
	if len(fc.MainMonths) == 0 {
		return fmt.Errorf("%w: %s: main_symbols is empty", ErrInvalid, fc.Symbol)
	}
	for i, m := range fc.MainMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: %s: main_symbols month %d out of range", ErrInvalid, fc.Symbol, m)
		}
		if i > 0 && m <= fc.MainMonths[i-1] {
			return fmt.Errorf("%w: %s: main_symbols must be ascending", ErrInvalid, fc.Symbol)
		}
	}
	if fc.Long.BaseScale <= 0 {
		return fmt.Errorf("%w: %s: long.base_scale must be positive", ErrInvalid, fc.Symbol)
	}
	if fc.Short.BaseScale <= 0 {
		return fmt.Errorf("%w: %s: short.base_scale must be positive", ErrInvalid, fc.Symbol)
	}
	return nil
}

// Seed stores the file configs missing from the store and returns the
// effective configs, ordered by symbol. Store entries win.
func Seed(ctx context.Context, store storage.ConfigStore, futures []*domain.FutureConfig, log *logger.Logger) ([]*domain.FutureConfig, error) {
	if log == nil {
		log = logger.Nop()
	}

	for _, fc := range futures {
		_, ok, err := store.GetFuture(ctx, fc.Symbol)
		if err != nil {
			return nil, fmt.Errorf("load future config %s: %w", fc.Symbol, err)
		}
		if ok {
			continue
		}
		if err := store.SaveFuture(ctx, fc); err != nil {
			return nil, fmt.Errorf("seed future config %s: %w", fc.Symbol, err)
		}
		log.Infof("seeded future config %s", fc.Symbol)
	}

	all, err := store.ListFutures(ctx)
	if err != nil {
		return nil, fmt.Errorf("list future configs: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Symbol < all[j].Symbol })
	return all, nil
}

// Active filters the configs marked active.
func Active(futures []*domain.FutureConfig) []*domain.FutureConfig {
	return lo.Filter(futures, func(fc *domain.FutureConfig, _ int) bool { return fc.IsActive })
}
