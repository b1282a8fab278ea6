package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
	"futures-trader/internal/symbol"
)

// countWindow is the look-back of TipRow.Count7d.
const countWindow = 7 * 24 * time.Hour

// Generator produces tip reports from stored data.
type Generator struct {
	tipStore    storage.TipStore
	configStore storage.ConfigStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(tips storage.TipStore, configs storage.ConfigStore) *Generator {
	return &Generator{
		tipStore:    tips,
		configStore: configs,
		now:         func() time.Time { return time.Now().In(domain.ExchangeTZ) },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of the newest tips.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	now := g.now()
	tips, err := g.tipStore.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest tips: %w", err)
	}

	r := &Report{GeneratedAt: now}
	configs := make(map[string]*domain.FutureConfig)
	missing := make(map[string]struct{})

	for _, tip := range tips {
		cfg, err := g.configOf(ctx, configs, tip.Symbol)
		if err != nil {
			return nil, err
		}
		row := TipRow{
			TipID:        tip.TipID,
			CustomSymbol: tip.CustomSymbol,
			Symbol:       tip.Symbol,
			Direction:    tip.Direction.String(),
			Volume:       tip.Volume,
			ClosePrice:   tip.LastPrice,
			BarTime:      tip.DailyBarTime,
			NeedTrade:    tip.NeedTrade,
		}
		if cfg != nil {
			row.Name = cfg.Name
			row.Multiple = cfg.Multiple
			row.OpenPosScale = cfg.OpenPosScale
		} else {
			missing[tip.Symbol] = struct{}{}
		}

		row.Count7d, err = g.tipStore.CountSince(ctx, tip.Symbol, tip.Direction, now.Add(-countWindow))
		if err != nil {
			return nil, fmt.Errorf("count tips %s: %w", tip.Symbol, err)
		}

		r.Tips = append(r.Tips, row)
		r.DailyBarTime = tip.DailyBarTime
		r.Summary.TotalTips++
		if tip.Direction == domain.Long {
			r.Summary.LongTips++
		} else {
			r.Summary.ShortTips++
		}
		if tip.NeedTrade {
			r.Summary.ApprovedTips++
		}
	}

	sortTipRows(r.Tips)
	for s := range missing {
		r.Unconfigured = append(r.Unconfigured, s)
	}
	sort.Strings(r.Unconfigured)
	return r, nil
}

// configOf returns the config of the contract's continuous symbol, or nil
// when none is stored.
func (g *Generator) configOf(ctx context.Context, cache map[string]*domain.FutureConfig, contract string) (*domain.FutureConfig, error) {
	continuous, err := symbol.ContinuousOf(contract)
	if err != nil {
		return nil, err
	}
	if cfg, ok := cache[continuous]; ok {
		return cfg, nil
	}
	cfg, ok, err := g.configStore.GetFuture(ctx, continuous)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", continuous, err)
	}
	if !ok {
		cfg = nil
	}
	cache[continuous] = cfg
	return cfg, nil
}

// Approve marks a tip for trading. The engine opens from it on its next
// in-session check.
func (g *Generator) Approve(ctx context.Context, tipID string, approve bool) (*domain.PreTradeTip, error) {
	tip, ok, err := g.tipStore.Get(ctx, tipID)
	if err != nil {
		return nil, fmt.Errorf("load tip %s: %w", tipID, err)
	}
	if !ok {
		return nil, fmt.Errorf("tip %s: %w", tipID, storage.ErrNotFound)
	}
	if err := g.tipStore.SetNeedTrade(ctx, tipID, approve); err != nil {
		return nil, fmt.Errorf("approve tip %s: %w", tipID, err)
	}
	tip.NeedTrade = approve
	return tip, nil
}

func sortTipRows(rows []TipRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Direction < rows[j].Direction
	})
}
