package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/volcanoes/internal/record"
)

// geometryColumns are carried by the feature geometry, not its properties.
var geometryColumns = map[string]bool{
	"latitude":    true,
	"longitude":   true,
	"lat":         true,
	"lon":         true,
	"geolocation": true,
	"the_geom":    true,
}

// Features converts records to GeoJSON features. Records without valid
// coordinates are skipped and reported as warnings.
func Features(c *record.Collection) ([]*geojson.Feature, []error) {
	cols := c.Columns()
	features := make([]*geojson.Feature, 0, c.Len())
	var warnings []error

	for _, r := range c.Records() {
		pt, ok := r.Point()
		if !ok {
			warnings = append(warnings, missingCoordinates(r))
			continue
		}
		props := make(map[string]any, len(cols))
		for _, col := range cols {
			if geometryColumns[strings.ToLower(col)] {
				continue
			}
			v, ok := r.Get(col)
			if !ok {
				continue
			}
			props[col] = propertyValue(v)
		}
		f := &geojson.Feature{
			Geometry:   pt,
			Properties: props,
		}
		if id, ok := r.ID(); ok {
			f.ID = strconv.FormatInt(id, 10)
		}
		features = append(features, f)
	}
	return features, warnings
}

// WriteGeoJSON writes a FeatureCollection of Point features.
func WriteGeoJSON(w io.Writer, c *record.Collection) ([]error, error) {
	features, warnings := Features(c)
	fc := geojson.FeatureCollection{Features: features}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&fc); err != nil {
		return nil, eris.Wrap(err, "export geojson: encode")
	}
	return warnings, nil
}

// propertyValue emits numeric-looking values as JSON numbers.
func propertyValue(v string) any {
	if !strings.Contains(v, ".") {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !strings.ContainsAny(v, "eEnN") {
		return f
	}
	return v
}
