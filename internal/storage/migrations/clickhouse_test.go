package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	sql := `-- header
CREATE TABLE a (x Int8) ENGINE = Memory;

-- second; with a semicolon
CREATE TABLE b (y String) ENGINE = Memory;
`
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}

func TestSplitStatements_Literals(t *testing.T) {
	sql := "INSERT INTO t VALUES ('a;b'), ('it''s; ok'), ('c\\';d');SELECT 1"
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	want := "INSERT INTO t VALUES ('a;b'), ('it''s; ok'), ('c\\';d')"
	if stmts[0] != want {
		t.Errorf("expected %q, got %q", want, stmts[0])
	}
	if stmts[1] != "SELECT 1" {
		t.Errorf("unexpected trailing statement %q", stmts[1])
	}
}

func TestLoad(t *testing.T) {
	for _, dialect := range []string{dialectPostgres, dialectClickhouse} {
		migrations, err := Load(dialect)
		if err != nil {
			t.Fatalf("Load(%s): %v", dialect, err)
		}
		if len(migrations) == 0 {
			t.Fatalf("no %s migrations embedded", dialect)
		}
		for i := 1; i < len(migrations); i++ {
			if migrations[i-1].Version >= migrations[i].Version {
				t.Errorf("%s migrations out of order: %s before %s", dialect, migrations[i-1].Version, migrations[i].Version)
			}
		}
	}

	ch, _ := Load(dialectClickhouse)
	for _, m := range ch {
		if len(splitStatements(m.SQL)) == 0 {
			t.Errorf("%s has no statements", m.Version)
		}
	}

	if _, err := Load("mysql"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}
