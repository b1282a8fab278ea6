package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// QueryObserver receives one observation per executed statement.
// *observability.Metrics implements it.
type QueryObserver interface {
	RecordDBQuery(database, operation string, seconds float64, err error)
}

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	operation string
}

// queryTracer implements pgx.QueryTracer.
type queryTracer struct {
	obs QueryObserver
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), operation: operation(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	t.obs.RecordDBQuery("postgres", start.operation, time.Since(start.at).Seconds(), data.Err)
}

// operation returns the lower-cased leading keyword of a statement.
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete", "with", "create", "begin", "commit", "rollback":
		return op
	default:
		return "other"
	}
}
