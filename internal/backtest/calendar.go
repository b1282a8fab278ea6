package backtest

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"futures-trader/internal/domain"
	"futures-trader/internal/symbol"
)

// Contract is one exchange contract of a backtest calendar.
type Contract struct {
	Continuous string    `yaml:"continuous"`
	Symbol     string    `yaml:"symbol"`
	MainFrom   time.Time `yaml:"main_from"` // the continuous symbol maps to it from here on
	Expire     time.Time `yaml:"expire"`
}

// Calendar lists the contracts a replay trades and when the broker remaps
// each continuous symbol.
type Calendar struct {
	Contracts []Contract `yaml:"contracts"`
}

// LoadCalendar decodes a YAML calendar. Dates without a zone are exchange time.
func LoadCalendar(r io.Reader) (*Calendar, error) {
	var raw struct {
		Contracts []struct {
			Continuous string `yaml:"continuous"`
			Symbol     string `yaml:"symbol"`
			MainFrom   string `yaml:"main_from"`
			Expire     string `yaml:"expire"`
		} `yaml:"contracts"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}

	cal := &Calendar{}
	for i, c := range raw.Contracts {
		mainFrom, err := time.ParseInLocation("2006-01-02", c.MainFrom, domain.ExchangeTZ)
		if err != nil {
			return nil, fmt.Errorf("contracts[%d].main_from: %w", i, err)
		}
		expire, err := time.ParseInLocation("2006-01-02", c.Expire, domain.ExchangeTZ)
		if err != nil {
			return nil, fmt.Errorf("contracts[%d].expire: %w", i, err)
		}
		cal.Contracts = append(cal.Contracts, Contract{
			Continuous: c.Continuous,
			Symbol:     c.Symbol,
			MainFrom:   mainFrom,
			Expire:     expire,
		})
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

// Validate checks that every contract belongs to its continuous symbol.
func (c *Calendar) Validate() error {
	for i, ct := range c.Contracts {
		continuous, err := symbol.ContinuousOf(ct.Symbol)
		if err != nil {
			return fmt.Errorf("contracts[%d].symbol: %w", i, err)
		}
		if continuous != ct.Continuous {
			return fmt.Errorf("contracts[%d]: %s does not belong to %s", i, ct.Symbol, ct.Continuous)
		}
		if !ct.Expire.After(ct.MainFrom) {
			return fmt.Errorf("contracts[%d]: %s expires before it becomes main", i, ct.Symbol)
		}
	}
	return nil
}

// For returns the contracts of a continuous symbol ordered by MainFrom.
func (c *Calendar) For(continuous string) []Contract {
	var out []Contract
	for _, ct := range c.Contracts {
		if ct.Continuous == continuous {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainFrom.Before(out[j].MainFrom) })
	return out
}
