// Package symbol parses exchange contract and continuous symbols and derives
// the names the rest of the system keys state by.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"futures-trader/internal/domain"
)

// ErrInvalidSymbol is returned for symbols outside the supported grammar.
var ErrInvalidSymbol = errors.New("invalid symbol")

// ContinuousPrefix prefixes continuous (main joint) symbols.
const ContinuousPrefix = "KQ.m@"

var contractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(CFFEX)\.([A-Z]{1,2})(\d{4})$`),
	regexp.MustCompile(`^(CZCE)\.([A-Z]{2})(\d{3})$`),
	regexp.MustCompile(`^(DCE)\.([a-z]{1,2})(\d{4})$`),
	regexp.MustCompile(`^(INE)\.([a-z]{2})(\d{4})$`),
	regexp.MustCompile(`^(SHFE)\.([a-z]{2})(\d{4})$`),
}

var continuousPattern = regexp.MustCompile(`^KQ\.m@(CFFEX|CZCE|DCE|INE|SHFE)\.(\w{1,2})$`)

// Contract is a parsed exchange contract such as SHFE.rb2401.
type Contract struct {
	Exchange   string
	Variety    string
	Year       int // two digits, one for CZCE
	Month      int
	YearDigits int
}

// String formats the contract back to its symbol.
func (c Contract) String() string {
	return fmt.Sprintf("%s.%s%0*d%02d", c.Exchange, c.Variety, c.YearDigits, c.Year, c.Month)
}

// Continuous returns the continuous symbol of the contract's variety.
func (c Contract) Continuous() string {
	return ContinuousPrefix + c.Exchange + "." + c.Variety
}

// Parse parses an exchange contract symbol.
func Parse(s string) (Contract, error) {
	for _, p := range contractPatterns {
		m := p.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		digits := m[3]
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Contract{}, fmt.Errorf("%w: %s", ErrInvalidSymbol, s)
		}
		c := Contract{
			Exchange:   m[1],
			Variety:    m[2],
			Year:       n / 100,
			Month:      n % 100,
			YearDigits: len(digits) - 2,
		}
		if c.Month < 1 || c.Month > 12 {
			return Contract{}, fmt.Errorf("%w: month out of range in %s", ErrInvalidSymbol, s)
		}
		return c, nil
	}
	return Contract{}, fmt.Errorf("%w: %s", ErrInvalidSymbol, s)
}

// ParseContinuous parses KQ.m@EXCH.variety and returns exchange and variety.
func ParseContinuous(s string) (exchange, variety string, err error) {
	m := continuousPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidSymbol, s)
	}
	return m[1], m[2], nil
}

// IsContinuous reports whether s is a continuous symbol.
func IsContinuous(s string) bool {
	return continuousPattern.MatchString(s)
}

// ContinuousOf maps a contract or continuous symbol to its continuous symbol.
func ContinuousOf(s string) (string, error) {
	if IsContinuous(s) {
		return s, nil
	}
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	return c.Continuous(), nil
}

// CustomSymbol names the state of one (continuous symbol, strategy, direction),
// e.g. DCE_a_main_short.
func CustomSymbol(continuous string, direction domain.Direction, kind domain.StrategyKind) (string, error) {
	exchange, variety, err := ParseContinuous(continuous)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s_%s", exchange, variety, kind, direction), nil
}

// NextContract returns the contract following current within the listed trading months.
// The month after the current one is taken; past the last listed month it wraps to the
// first month of the following year. A current month missing from the list is kept.
func NextContract(current string, months []int) (string, error) {
	c, err := Parse(current)
	if err != nil {
		return "", err
	}
	if len(months) == 0 {
		return "", fmt.Errorf("%w: no trading months configured for %s", ErrInvalidSymbol, current)
	}
	yearLimit := 100
	if c.YearDigits == 1 {
		yearLimit = 10
	}
	for i, m := range months {
		if m != c.Month {
			continue
		}
		if i == len(months)-1 {
			c.Month = months[0]
			c.Year = (c.Year + 1) % yearLimit
		} else {
			c.Month = months[i+1]
		}
		break
	}
	return c.String(), nil
}
