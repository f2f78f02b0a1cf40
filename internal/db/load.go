package db

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/export"
	"github.com/sells-group/volcanoes/internal/record"
)

// GeomColumn holds the record location as EWKB (SRID 4326), NULL when the
// record has no coordinates.
const GeomColumn = "geom_ewkb"

// LoadConfig names the target table.
type LoadConfig struct {
	Schema   string // empty uses the search path
	Table    string // defaults to the collection name
	Truncate bool   // empty the table before copying
}

// Load creates the table if needed, optionally truncates it, and copies every
// record in one transaction. Columns are TEXT plus a BYTEA geometry column.
func Load(ctx context.Context, pool Pool, cfg LoadConfig, c *record.Collection) (int64, error) {
	table := cfg.Table
	if table == "" {
		table = export.TableName(c)
	}
	target := identifier(cfg.Schema, table).Sanitize()
	log := zap.L().With(zap.String("component", "db.load"), zap.String("table", qualified(cfg.Schema, table)))
	start := time.Now()

	cols := c.Columns()
	names := export.UniqueColumnNames(cols)
	for _, n := range names {
		if strings.EqualFold(n, GeomColumn) {
			return 0, eris.Errorf("db: load: column %q is reserved", n)
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: load: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if cfg.Schema != "" {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+identifier("", cfg.Schema).Sanitize()); err != nil {
			return 0, eris.Wrapf(err, "db: load: create schema %s", cfg.Schema)
		}
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(target, names)); err != nil {
		return 0, eris.Wrapf(err, "db: load: create table %s", table)
	}
	if cfg.Truncate {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+target); err != nil {
			return 0, eris.Wrapf(err, "db: load: truncate %s", table)
		}
	}

	rows, err := Rows(c)
	if err != nil {
		return 0, err
	}
	n, err := CopyFrom(ctx, tx, cfg.Schema, table, append(names, GeomColumn), rows)
	if err != nil {
		return 0, eris.Wrap(err, "db: load")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: load: commit tx")
	}

	log.Info("loaded collection",
		zap.String("collection", c.Name()),
		zap.Int64("records", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// CreateTableSQL renders the DDL for a TEXT-column table plus the geometry column.
func CreateTableSQL(target string, columns []string) string {
	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		defs = append(defs, identifier("", col).Sanitize()+" TEXT")
	}
	defs = append(defs, GeomColumn+" BYTEA")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", target, strings.Join(defs, ", "))
}

// Rows converts records to COPY rows: one value per column (nil when empty)
// followed by the EWKB point.
func Rows(c *record.Collection) ([][]any, error) {
	cols := c.Columns()
	rows := make([][]any, 0, c.Len())
	for _, r := range c.Records() {
		row := make([]any, 0, len(cols)+1)
		for _, v := range r.Values(cols) {
			if v == "" {
				row = append(row, nil)
			} else {
				row = append(row, v)
			}
		}
		var g []byte
		if pt, ok := r.Point(); ok {
			b, err := ewkb.Marshal(pt, binary.LittleEndian)
			if err != nil {
				return nil, eris.Wrapf(err, "db: encode point for %s", r)
			}
			g = b
		}
		if g == nil {
			row = append(row, nil)
		} else {
			row = append(row, g)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
