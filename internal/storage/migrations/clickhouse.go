package migrations

import (
	"context"
	"fmt"
	"strings"

	chstore "futures-trader/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database when missing and applies
// the embedded migrations statement by statement. ClickHouse DDL here is
// IF NOT EXISTS throughout, so every run replays all files.
// The returned connection targets the DSN's database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := chstore.DatabaseOf(dsn)
	if err != nil {
		return nil, err
	}
	migrations, err := Load(dialectClickhouse)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	for _, m := range migrations {
		// the native driver runs one statement per Exec
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
	}
	return conn, nil
}

// splitStatements splits SQL on semicolons outside single-quoted literals,
// dropping -- comments. Doubled quotes and backslash escapes stay inside
// the literal.
func splitStatements(input string) []string {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			cur.WriteByte(ch)
			switch {
			case ch == '\\' && i+1 < len(input):
				i++
				cur.WriteByte(input[i])
			case ch == '\'' && i+1 < len(input) && input[i+1] == '\'':
				i++
				cur.WriteByte(input[i])
			case ch == '\'':
				inString = false
			}
			continue
		}

		switch {
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == '\'':
			inString = true
			cur.WriteByte(ch)
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}
