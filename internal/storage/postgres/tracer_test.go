package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type observation struct {
	database, operation string
	err                 error
}

type recorder struct {
	got []observation
}

func (r *recorder) RecordDBQuery(database, operation string, _ float64, err error) {
	r.got = append(r.got, observation{database, operation, err})
}

func TestQueryTracer(t *testing.T) {
	rec := &recorder{}
	tr := &queryTracer{obs: rec}

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "\n\tINSERT INTO orders VALUES ($1)"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	boom := errors.New("boom")
	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: boom})

	// end without start is ignored
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	if len(rec.got) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(rec.got))
	}
	if rec.got[0] != (observation{"postgres", "insert", nil}) {
		t.Errorf("unexpected first observation %+v", rec.got[0])
	}
	if rec.got[1].operation != "select" || !errors.Is(rec.got[1].err, boom) {
		t.Errorf("unexpected second observation %+v", rec.got[1])
	}
}

func TestOperation(t *testing.T) {
	tests := map[string]string{
		"":                                "unknown",
		"UPDATE trade_statuses SET x = 1": "update",
		"ALTER TABLE t ADD COLUMN c INT":  "other",
		"with x as (select 1) select *":   "with",
	}
	for sql, want := range tests {
		if got := operation(sql); got != want {
			t.Errorf("operation(%q) = %q, want %q", sql, got, want)
		}
	}
}
