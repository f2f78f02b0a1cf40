// Package record holds parsed GVP rows and the in-memory collections built from them.
package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/volcanoes/internal/dataset"
)

const feetPerMeter = 3.28084

// Header is the ordered column list of a payload plus a tolerant name index.
type Header struct {
	columns []string
	index   map[string]int
}

// NewHeader builds a header from upstream column names. When two columns
// normalize to the same key the first one wins lookups.
func NewHeader(columns []string) *Header {
	h := &Header{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if i == 0 {
			c = strings.TrimPrefix(c, "\ufeff")
		}
		c = strings.TrimSpace(c)
		h.columns[i] = c
		key := normalizeKey(c)
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

// Columns returns a copy of the column names in payload order.
func (h *Header) Columns() []string {
	out := make([]string, len(h.columns))
	copy(out, h.columns)
	return out
}

// Lookup returns the position of the named column.
func (h *Header) Lookup(name string) (int, bool) {
	i, ok := h.index[normalizeKey(name)]
	return i, ok
}

// normalizeKey folds case and drops '_', '-' and spaces so that
// Volcano_Number, VolcanoNumber and "volcano number" match.
func normalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Record is one parsed row. Field access goes through the header so unknown
// upstream columns stay reachable by name.
type Record struct {
	header *Header
	values []string
	origin dataset.Dataset
}

// New creates a record from values aligned with header. Missing trailing values are absent.
func New(origin dataset.Dataset, header *Header, values []string) *Record {
	v := make([]string, len(header.columns))
	copy(v, values)
	return &Record{header: header, values: v, origin: origin}
}

// FromMap builds a record whose columns are the given order; values come from fields.
func FromMap(origin dataset.Dataset, columns []string, fields map[string]string) *Record {
	h := NewHeader(columns)
	values := make([]string, len(columns))
	for i, c := range columns {
		values[i] = fields[c]
	}
	return &Record{header: h, values: values, origin: origin}
}

// Dataset returns the dataset the record was parsed from.
func (r *Record) Dataset() dataset.Dataset { return r.origin }

// Columns returns the record's column names in payload order.
func (r *Record) Columns() []string { return r.header.Columns() }

// Get returns the trimmed value of a field. Empty values count as absent.
func (r *Record) Get(name string) (string, bool) {
	i, ok := r.header.Lookup(name)
	if !ok || i >= len(r.values) {
		return "", false
	}
	v := r.values[i]
	if v == "" {
		return "", false
	}
	return v, true
}

// GetField returns the named field or def when it is absent.
func (r *Record) GetField(name, def string) string {
	if v, ok := r.Get(name); ok {
		return v
	}
	return def
}

// first returns the first present field among names.
func (r *Record) first(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := r.Get(n); ok {
			return v, true
		}
	}
	return "", false
}

// Float parses the named field as a float.
func (r *Record) Float(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Int parses the named field as an integer. Values such as "211020.0" are accepted.
func (r *Record) Int(name string) (int64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return parseInt(v)
}

func parseInt(v string) (int64, bool) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// Fields returns a copy of all present fields keyed by column name.
func (r *Record) Fields() map[string]string {
	out := make(map[string]string, len(r.values))
	for i, c := range r.header.columns {
		if i < len(r.values) && r.values[i] != "" {
			out[c] = r.values[i]
		}
	}
	return out
}

// Values returns the raw values aligned with the given column order.
func (r *Record) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i], _ = r.Get(c)
	}
	return out
}

// IDField returns the column that identifies this record.
func (r *Record) IDField() string {
	return r.origin.Entity().IDField()
}

// ID returns the record identifier: the eruption number for eruption datasets,
// the volcano number otherwise.
func (r *Record) ID() (int64, bool) {
	return r.Int(r.IDField())
}

// VolcanoNumber returns the GVP volcano number.
func (r *Record) VolcanoNumber() (int64, bool) {
	return r.Int("Volcano_Number")
}

// EruptionNumber returns the GVP eruption number.
func (r *Record) EruptionNumber() (int64, bool) {
	return r.Int("Eruption_Number")
}

// Name returns the volcano name. Volcanoes listed as "Unnamed" get their number appended.
func (r *Record) Name() string {
	name, _ := r.Get("Volcano_Name")
	if strings.EqualFold(name, "unnamed") {
		if n, ok := r.VolcanoNumber(); ok {
			return fmt.Sprintf("Unnamed-%d", n)
		}
	}
	return name
}

// Country returns the country field.
func (r *Record) Country() string { return r.GetField("Country", "") }

// Region returns the region field.
func (r *Record) Region() string { return r.GetField("Region", "") }

// Subregion returns the subregion field.
func (r *Record) Subregion() string { return r.GetField("Subregion", "") }

// VolcanoType returns the primary volcano type.
func (r *Record) VolcanoType() string {
	v, _ := r.first("Primary_Volcano_Type", "Volcano_Type")
	return v
}

// GeologicEpoch returns the geologic epoch label.
func (r *Record) GeologicEpoch() string { return r.GetField("Geologic_Epoch", "") }

// TectonicSetting returns the tectonic setting.
func (r *Record) TectonicSetting() string { return r.GetField("Tectonic_Setting", "") }

// MajorRockType returns the major rock type.
func (r *Record) MajorRockType() string { return r.GetField("Major_Rock_Type", "") }

// GeologicalSummary returns the free-text summary.
func (r *Record) GeologicalSummary() string { return r.GetField("Geological_Summary", "") }

// LastEruptionYear returns the last known eruption year (negative for BCE).
func (r *Record) LastEruptionYear() (int64, bool) {
	return r.Int("Last_Eruption_Year")
}

// StartYear returns an eruption's start year.
func (r *Record) StartYear() (int64, bool) {
	v, ok := r.first("Start_Date_Year", "StartDateYear", "Start_Year")
	if !ok {
		return 0, false
	}
	return parseInt(v)
}

// VEI returns an eruption's maximum volcanic explosivity index.
func (r *Record) VEI() (int64, bool) {
	v, ok := r.first("ExplosivityIndexMax", "VEI")
	if !ok {
		return 0, false
	}
	return parseInt(v)
}

// Latitude returns the latitude in decimal degrees.
func (r *Record) Latitude() (float64, bool) {
	lat, _, ok := r.Coordinates()
	return lat, ok
}

// Longitude returns the longitude in decimal degrees.
func (r *Record) Longitude() (float64, bool) {
	_, lon, ok := r.Coordinates()
	return lon, ok
}

// Coordinates returns (latitude, longitude). It reads the Latitude/Longitude
// columns and falls back to the WKT GeoLocation column.
func (r *Record) Coordinates() (lat, lon float64, ok bool) {
	lat, latOK := r.Float("Latitude")
	lon, lonOK := r.Float("Longitude")
	if latOK && lonOK {
		return lat, lon, validCoords(lat, lon)
	}
	if p, ok := r.geoLocation(); ok {
		return p.Y(), p.X(), validCoords(p.Y(), p.X())
	}
	return 0, 0, false
}

func validCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func (r *Record) geoLocation() (*geom.Point, bool) {
	v, ok := r.first("GeoLocation", "the_geom")
	if !ok {
		return nil, false
	}
	g, err := wkt.Unmarshal(v)
	if err != nil {
		return nil, false
	}
	p, ok := g.(*geom.Point)
	if !ok || p.Empty() {
		return nil, false
	}
	return p, true
}

// Point returns the record location as a go-geom point (x=lon, y=lat, SRID 4326).
func (r *Record) Point() (*geom.Point, bool) {
	lat, lon, ok := r.Coordinates()
	if !ok {
		return nil, false
	}
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326), true
}

// Elevation returns the elevation in meters.
func (r *Record) Elevation() (float64, bool) {
	v, ok := r.first("Elevation", "Elevation_m")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ElevationIn returns the elevation in "m" or "ft".
func (r *Record) ElevationIn(units string) (float64, bool, error) {
	m, ok := r.Elevation()
	switch strings.ToLower(units) {
	case "m", "meters":
		return m, ok, nil
	case "ft", "feet":
		return m * feetPerMeter, ok, nil
	default:
		return 0, false, eris.Errorf("record: units must be m or ft, got %q", units)
	}
}

// DistanceTo returns the great-circle distance in km, or +Inf without coordinates.
func (r *Record) DistanceTo(lat, lon float64) float64 {
	rlat, rlon, ok := r.Coordinates()
	if !ok {
		return math.Inf(1)
	}
	return Haversine(rlat, rlon, lat, lon)
}

func (r *Record) String() string {
	id, _ := r.ID()
	if r.origin.Entity() == dataset.Eruptions {
		vn, _ := r.VolcanoNumber()
		return fmt.Sprintf("Eruption(%d, volcano #%d %s)", id, vn, r.Name())
	}
	elev := "unknown"
	if e, ok := r.Elevation(); ok {
		elev = fmt.Sprintf("%.0fm", e)
	}
	return fmt.Sprintf("Volcano(%d, %s, %s, %s)", id, r.Name(), r.Country(), elev)
}
