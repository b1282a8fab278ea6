package symbol

import (
	"errors"
	"testing"

	"futures-trader/internal/domain"
)

func TestNextContract(t *testing.T) {
	tests := []struct {
		name    string
		current string
		months  []int
		want    string
	}{
		{"wraps to next year", "DCE.a2309", []int{1, 5, 9}, "DCE.a2401"},
		{"next listed month", "DCE.a2307", []int{1, 3, 5, 7, 9, 11}, "DCE.a2309"},
		{"skips unlisted months", "SHFE.ag2308", []int{6, 8, 12}, "SHFE.ag2312"},
		{"october to january", "SHFE.hc2310", []int{1, 5, 10}, "SHFE.hc2401"},
		{"czce single digit year", "CZCE.MA309", []int{1, 5, 9}, "CZCE.MA401"},
		{"czce decade wrap", "CZCE.MA909", []int{1, 5, 9}, "CZCE.MA001"},
		{"century wrap keeps width", "SHFE.rb9912", []int{1, 5, 10, 12}, "SHFE.rb0001"},
		{"cffex", "CFFEX.IF2312", []int{3, 6, 9, 12}, "CFFEX.IF2403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextContract(tt.current, tt.months)
			if err != nil {
				t.Fatalf("NextContract(%s) error: %v", tt.current, err)
			}
			if got != tt.want {
				t.Errorf("NextContract(%s, %v) = %s, want %s", tt.current, tt.months, got, tt.want)
			}
		})
	}
}

func TestNextContract_YearMonth(t *testing.T) {
	got, err := NextContract("SHFE.rb2309", []int{1, 5, 9})
	if err != nil {
		t.Fatalf("NextContract error: %v", err)
	}
	c, err := Parse(got)
	if err != nil {
		t.Fatalf("Parse(%s) error: %v", got, err)
	}
	if c.Year != 24 || c.Month != 1 {
		t.Errorf("next of 2023/09 = %d/%02d, want 24/01", c.Year, c.Month)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "rb2401", "SHFE.RB2401", "CZCE.MA2401", "DCE.a24011", "SHFE.rb2413", "NYMEX.cl2401"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidSymbol", s, err)
		}
	}
}

func TestParse_Valid(t *testing.T) {
	c, err := Parse("DCE.jm2405")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if c.Exchange != "DCE" || c.Variety != "jm" || c.Year != 24 || c.Month != 5 {
		t.Errorf("Parse = %+v", c)
	}
	if c.String() != "DCE.jm2405" {
		t.Errorf("String() = %s", c.String())
	}
}

func TestContinuousOf(t *testing.T) {
	tests := map[string]string{
		"SHFE.rb2401":  "KQ.m@SHFE.rb",
		"CZCE.UR309":   "KQ.m@CZCE.UR",
		"KQ.m@DCE.a":   "KQ.m@DCE.a",
		"CFFEX.IF2312": "KQ.m@CFFEX.IF",
	}
	for in, want := range tests {
		got, err := ContinuousOf(in)
		if err != nil {
			t.Fatalf("ContinuousOf(%s) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ContinuousOf(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCustomSymbol(t *testing.T) {
	got, err := CustomSymbol("KQ.m@DCE.a", domain.Short, domain.StrategyMain)
	if err != nil {
		t.Fatalf("CustomSymbol error: %v", err)
	}
	if got != "DCE_a_main_short" {
		t.Errorf("CustomSymbol = %s, want DCE_a_main_short", got)
	}

	got, err = CustomSymbol("KQ.m@SHFE.rb", domain.Long, domain.StrategyBottom)
	if err != nil {
		t.Fatalf("CustomSymbol error: %v", err)
	}
	if got != "SHFE_rb_bottom_long" {
		t.Errorf("CustomSymbol = %s, want SHFE_rb_bottom_long", got)
	}

	if _, err := CustomSymbol("SHFE.rb2401", domain.Long, domain.StrategyMain); !errors.Is(err, ErrInvalidSymbol) {
		t.Errorf("CustomSymbol on a contract: error = %v, want ErrInvalidSymbol", err)
	}
}
