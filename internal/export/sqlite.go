package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/volcanoes/internal/record"
)

// TableName returns the table name used for a collection.
func TableName(c *record.Collection) string {
	return c.Name()
}

// WriteSQLite writes the collection into table at path, replacing any table of
// the same name. All columns are TEXT and the load runs in one transaction.
func WriteSQLite(ctx context.Context, path, table string, c *record.Collection) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return eris.Wrap(err, "sqlite: open")
	}
	defer db.Close() //nolint:errcheck

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return eris.Wrap(err, "sqlite: exec pragma")
	}

	cols := c.Columns()
	names := UniqueColumnNames(cols)
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return eris.Wrapf(err, "sqlite: drop %s", table)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s TEXT)", quoteIdent(table), strings.Join(quoted, " TEXT, "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return eris.Wrapf(err, "sqlite: create %s", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(cols))
	for _, r := range c.Records() {
		for i, v := range r.Values(cols) {
			if v == "" {
				args[i] = nil
			} else {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", r)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// UniqueColumnNames de-duplicates column names case-insensitively by
// appending _2, _3 and so on. Empty names become column_<n>.
func UniqueColumnNames(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, col := range columns {
		base := strings.TrimSpace(col)
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		name := base
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
