package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"
)

//go:embed postgres/*.sql clickhouse/*.sql
var sqlFS embed.FS

// Dialect directories under the embedded tree.
const (
	dialectPostgres   = "postgres"
	dialectClickhouse = "clickhouse"
)

// Migration is one embedded SQL file. Version is the file name, which
// orders migrations lexically (001_, 002_, ...).
type Migration struct {
	Version string
	SQL     string
}

// Load returns the non-empty migrations of a dialect in version order.
func Load(dialect string) ([]Migration, error) {
	entries, err := fs.ReadDir(sqlFS, dialect)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dialect, err)
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.HasSuffix(e.Name(), ".sql")
	})
	sort.Strings(names)

	var out []Migration
	for _, name := range names {
		data, err := fs.ReadFile(sqlFS, path.Join(dialect, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Version: name, SQL: string(data)})
	}
	return out, nil
}
