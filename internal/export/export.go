// Package export serializes record collections to files.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/record"
)

// Format is an output file format.
type Format string

const (
	CSV       Format = "csv"
	GeoJSON   Format = "geojson"
	XLSX      Format = "xlsx"
	Shapefile Format = "shp"
	SQLite    Format = "sqlite"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{CSV, GeoJSON, XLSX, Shapefile, SQLite}
}

// ParseFormat parses a format name. "json" is accepted for GeoJSON and
// "shapefile" for Shapefile.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "geojson", "json":
		return GeoJSON, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "shp", "shapefile":
		return Shapefile, nil
	case "sqlite", "db":
		return SQLite, nil
	}
	return "", eris.Errorf("export: unknown format %q (want csv, geojson, xlsx, shp or sqlite)", s)
}

// Ext returns the file extension for the format, with the dot.
func (f Format) Ext() string {
	if f == SQLite {
		return ".db"
	}
	return "." + string(f)
}

// DefaultPath returns dir/<collection name><ext>.
func DefaultPath(dir string, c *record.Collection, f Format) string {
	return filepath.Join(dir, c.Name()+f.Ext())
}

// ToFile writes c to path in the given format. Single-file formats are written
// to a temp file and renamed into place. The returned warnings list records
// that could not be represented, such as records without coordinates in
// spatial formats.
func ToFile(ctx context.Context, path string, f Format, c *record.Collection) ([]error, error) {
	log := zap.L().With(zap.String("component", "export"), zap.String("format", string(f)), zap.String("path", path))

	var (
		warnings []error
		err      error
	)
	switch f {
	case CSV:
		err = writeFileAtomic(path, func(w *os.File) error { return WriteCSV(w, c) })
	case GeoJSON:
		err = writeFileAtomic(path, func(w *os.File) error {
			var werr error
			warnings, werr = WriteGeoJSON(w, c)
			return werr
		})
	case XLSX:
		err = writeFileAtomic(path, func(w *os.File) error { return WriteXLSX(w, c) })
	case Shapefile:
		warnings, err = WriteShapefile(path, c)
	case SQLite:
		err = WriteSQLite(ctx, path, TableName(c), c)
	default:
		err = eris.Errorf("export: unknown format %q", f)
	}
	if err != nil {
		return nil, err
	}

	if len(warnings) > 0 {
		log.Warn("records omitted from export",
			zap.Int("omitted", len(warnings)),
			zap.String("first", warnings[0].Error()),
		)
	}
	log.Info("exported collection",
		zap.String("collection", c.Name()),
		zap.Int("records", c.Len()-len(warnings)),
	)
	return warnings, nil
}

const filePerm = 0o644

// writeFileAtomic runs write against a temp file beside path, then renames it.
func writeFileAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	// CreateTemp opens the file owner-only.
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "export: chmod temp file")
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "export: rename to %s", path)
	}
	return nil
}

// MissingCoordinates is a warning for a record left out of a spatial export.
type MissingCoordinates struct {
	Record string
}

func (w MissingCoordinates) Error() string {
	return w.Record + ": no valid coordinates, omitted"
}

func missingCoordinates(r *record.Record) error {
	return MissingCoordinates{Record: r.String()}
}
