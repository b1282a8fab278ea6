package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage/memory"
)

const sample = `
trade:
  direction: 1
  mode: backtest
  strategies: [main, bottom, main]
  backtest_days:
    start_date: "2023-01-03"
    end_date: "2023-06-30"
open_pos_scale: 0.2
futures:
  - symbol: KQ.m@DCE.a
    name: soybean
    is_active: true
    multiple: 10
    switch_days: [5, 10]
    main_symbols: [1, 5, 9]
    long:
      base_scale: 0.03
      stop_loss_scale: 1
      profit_start_scale_1: 3
      profit_start_scale_2: 1.5
      promote_scale_1: 6
      promote_scale_2: 3
      promote_target_1: 3
      promote_target_2: 1
    short:
      base_scale: 0.02
      stop_loss_scale: 1
      profit_start_scale: 8
      promote_scale: 3
      promote_target: 1
  - symbol: KQ.m@SHFE.rb
    is_active: false
    multiple: 10
    switch_days: [5, 10]
    main_symbols: [1, 5, 10]
    long: {base_scale: 0.03}
    short: {base_scale: 0.03}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Trade.Direction != domain.TradeLong || cfg.Trade.Mode != domain.ModeBacktest {
		t.Errorf("unexpected trade config %+v", cfg.Trade)
	}
	if cfg.Trade.AccountBalance != DefaultAccountBalance {
		t.Errorf("AccountBalance = %v, want default", cfg.Trade.AccountBalance)
	}
	if len(cfg.Trade.Strategies) != 2 || cfg.Trade.Strategies[1] != domain.StrategyBottom {
		t.Errorf("unexpected strategies %v", cfg.Trade.Strategies)
	}
	if cfg.Trade.BacktestStart.Month() != 1 || cfg.Trade.BacktestStart.Location() != domain.ExchangeTZ {
		t.Errorf("unexpected backtest start %v", cfg.Trade.BacktestStart)
	}

	if len(cfg.Futures) != 2 {
		t.Fatalf("expected 2 futures, got %d", len(cfg.Futures))
	}
	a := cfg.Futures[0]
	if a.OpenPosScale != 0.2 || a.TradeSwitchDay() != 5 || a.NoTradeSwitchDay() != 10 {
		t.Errorf("unexpected future %+v", a)
	}
	if a.Long.ProfitStartScale2 != 1.5 || a.Short.ProfitStartScale != 8 {
		t.Errorf("scales not decoded: %+v %+v", a.Long, a.Short)
	}

	active := Active(cfg.Futures)
	if len(active) != 1 || active[0].Symbol != "KQ.m@DCE.a" {
		t.Errorf("unexpected active set %v", active)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		field   string
	}{
		{"bad direction", [2]string{"direction: 1", "direction: 7"}, "trade.direction"},
		{"bad mode", [2]string{"mode: backtest", "mode: paper"}, "trade.mode"},
		{"bad strategy", [2]string{"[main, bottom, main]", "[main, swing]"}, "trade.strategies"},
		{"bad date", [2]string{`"2023-01-03"`, `"03/01/2023"`}, "start_date"},
		{"end before start", [2]string{`"2023-06-30"`, `"2022-06-30"`}, "end_date"},
		{"scale", [2]string{"open_pos_scale: 0.2", "open_pos_scale: 0"}, "open_pos_scale"},
		{"symbol", [2]string{"KQ.m@DCE.a", "DCE.a2401"}, "continuous"},
		{"months", [2]string{"[1, 5, 9]", "[5, 1]"}, "ascending"},
		{"month range", [2]string{"[1, 5, 9]", "[1, 13]"}, "out of range"},
		{"multiple", [2]string{"multiple: 10\n    switch_days: [5, 10]\n    main_symbols: [1, 5, 9]", "multiple: 0\n    switch_days: [5, 10]\n    main_symbols: [1, 5, 9]"}, "multiple"},
		{"duplicate", [2]string{"KQ.m@SHFE.rb", "KQ.m@DCE.a"}, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(sample, tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(data))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %q", err, tt.field)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSeed_StoreWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewConfigStore()

	stored := &domain.FutureConfig{Symbol: "KQ.m@DCE.a", Multiple: 20, MainMonths: []int{1, 5, 9}}
	if err := store.SaveFuture(ctx, stored); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	all, err := Seed(ctx, store, cfg.Futures, nil)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(all))
	}
	if all[0].Symbol != "KQ.m@DCE.a" || all[0].Multiple != 20 {
		t.Errorf("file overrode stored config: %+v", all[0])
	}
	if all[1].Symbol != "KQ.m@SHFE.rb" {
		t.Errorf("missing seeded config: %+v", all[1])
	}
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FT_TEST_SET=file\nFT_TEST_NEW=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FT_TEST_SET", "process")

	if err := LoadEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if got := Env("FT_TEST_SET", ""); got != "process" {
		t.Errorf("FT_TEST_SET = %q, want process", got)
	}
	if got := Env("FT_TEST_NEW", ""); got != "file" {
		t.Errorf("FT_TEST_NEW = %q, want file", got)
	}
	os.Unsetenv("FT_TEST_NEW")
	if got := Env("FT_TEST_NEW", "def"); got != "def" {
		t.Errorf("default not applied: %q", got)
	}
}
