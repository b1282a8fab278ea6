package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

// csvColumns is the header of a bar fixture.
var csvColumns = []string{"symbol", "timeframe", "time", "open", "high", "low", "close", "volume"}

// ImportCSV loads a bar fixture into store and returns the number of bars.
// Times are RFC 3339 or "2006-01-02 15:04:05" in exchange time.
func ImportCSV(ctx context.Context, r io.Reader, store storage.BarStore) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	for i, col := range csvColumns {
		if header[i] != col {
			return 0, fmt.Errorf("column %d: expected %s, got %s", i, col, header[i])
		}
	}

	type key struct {
		symbol string
		tf     domain.Timeframe
	}
	series := make(map[key][]domain.Bar)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		tf, ok := domain.ParseTimeframe(rec[1])
		if !ok {
			return 0, fmt.Errorf("line %d: unknown timeframe %q", line, rec[1])
		}
		bar, err := parseBar(rec[2:])
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		k := key{rec[0], tf}
		series[k] = append(series[k], bar)
	}

	total := 0
	for k, bars := range series {
		if err := store.InsertBulk(ctx, k.symbol, k.tf, bars); err != nil {
			return total, fmt.Errorf("insert %s %s: %w", k.symbol, k.tf, err)
		}
		total += len(bars)
	}
	return total, nil
}

func parseBar(fields []string) (domain.Bar, error) {
	at, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		at, err = time.ParseInLocation("2006-01-02 15:04:05", fields[0], domain.ExchangeTZ)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("time %q: %w", fields[0], err)
		}
	}
	var values [5]float64
	for i := range values {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s %q: %w", csvColumns[i+3], fields[i+1], err)
		}
		values[i] = v
	}
	return domain.Bar{
		Time:   at.In(domain.ExchangeTZ),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
