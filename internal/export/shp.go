package export

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/volcanoes/internal/record"
)

const (
	dbfNameLen     = 10
	dbfMaxFieldLen = 254
)

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// DBFFieldNames truncates column names to the 10-byte DBF limit and
// de-duplicates collisions with a numeric suffix.
func DBFFieldNames(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, col := range columns {
		base := truncateBytes(col, dbfNameLen)
		if base == "" {
			base = "FIELD"
		}
		name := base
		for n := 1; seen[strings.ToUpper(name)]; n++ {
			suffix := strconv.Itoa(n)
			name = truncateBytes(base, dbfNameLen-len(suffix)) + suffix
		}
		seen[strings.ToUpper(name)] = true
		out[i] = name
	}
	return out
}

// WriteShapefile writes a POINT shapefile (.shp, .shx, .dbf, .prj) at path.
// Every column becomes a character field. Records without coordinates are
// omitted and returned as warnings.
func WriteShapefile(path string, c *record.Collection) ([]error, error) {
	base := strings.TrimSuffix(path, ".shp")
	cols := c.Columns()

	type row struct {
		pt     shp.Point
		values []string
	}
	var (
		rows     []row
		warnings []error
	)
	sizes := make([]int, len(cols))
	for _, r := range c.Records() {
		lat, lon, ok := r.Coordinates()
		if !ok {
			warnings = append(warnings, missingCoordinates(r))
			continue
		}
		values := r.Values(cols)
		for i, v := range values {
			v = truncateBytes(v, dbfMaxFieldLen)
			values[i] = v
			sizes[i] = max(sizes[i], len(v))
		}
		rows = append(rows, row{pt: shp.Point{X: lon, Y: lat}, values: values})
	}

	names := DBFFieldNames(cols)
	fields := make([]shp.Field, len(cols))
	for i, name := range names {
		fields[i] = shp.StringField(name, uint8(max(sizes[i], 1)))
	}

	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return nil, eris.Wrapf(err, "export shp: create %s.shp", base)
	}
	defer w.Close()

	if err := w.SetFields(fields); err != nil {
		return nil, eris.Wrap(err, "export shp: set fields")
	}
	for _, rw := range rows {
		pt := rw.pt
		n := int(w.Write(&pt))
		for i, v := range rw.values {
			if v == "" {
				continue
			}
			if err := w.WriteAttribute(n, i, v); err != nil {
				return nil, eris.Wrapf(err, "export shp: write %s", names[i])
			}
		}
	}

	if err := os.WriteFile(base+".prj", []byte(wgs84PRJ), 0o644); err != nil {
		return nil, eris.Wrap(err, "export shp: write prj")
	}
	return warnings, nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
