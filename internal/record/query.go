package record

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics so "México" matches "mexico".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// Filter returns the records for which keep returns true.
func (c *Collection) Filter(keep func(*Record) bool) *Collection {
	var out []*Record
	for _, r := range c.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return c.derive(out)
}

// FilterByField keeps records whose field equals value, ignoring case and accents.
func (c *Collection) FilterByField(name, value string) *Collection {
	want := fold(value)
	return c.Filter(func(r *Record) bool {
		v, ok := r.Get(name)
		return ok && fold(v) == want
	})
}

// FilterContains keeps records whose field contains substr, ignoring case and accents.
func (c *Collection) FilterContains(name, substr string) *Collection {
	want := fold(substr)
	return c.Filter(func(r *Record) bool {
		v, ok := r.Get(name)
		return ok && strings.Contains(fold(v), want)
	})
}

// FilterByRange keeps records whose numeric field lies in [min, max]. A nil
// bound is open. Records with absent or non-numeric values are dropped.
func (c *Collection) FilterByRange(name string, minVal, maxVal *float64) *Collection {
	return c.Filter(func(r *Record) bool {
		v, ok := r.Float(name)
		return ok && inRange(v, minVal, maxVal)
	})
}

func inRange(v float64, minVal, maxVal *float64) bool {
	if minVal != nil && v < *minVal {
		return false
	}
	if maxVal != nil && v > *maxVal {
		return false
	}
	return true
}

// FilterByCountry keeps records from the given country.
func (c *Collection) FilterByCountry(country string) *Collection {
	return c.FilterByField("Country", country)
}

// FilterByName keeps records whose volcano name contains name.
func (c *Collection) FilterByName(name string) *Collection {
	want := fold(name)
	return c.Filter(func(r *Record) bool {
		return strings.Contains(fold(r.Name()), want)
	})
}

// FilterByType keeps volcanoes whose primary type contains volcanoType.
func (c *Collection) FilterByType(volcanoType string) *Collection {
	want := fold(volcanoType)
	return c.Filter(func(r *Record) bool {
		return strings.Contains(fold(r.VolcanoType()), want)
	})
}

// FilterByVolcanoNumber keeps records that reference the given volcano.
func (c *Collection) FilterByVolcanoNumber(n int64) *Collection {
	return c.Filter(func(r *Record) bool {
		v, ok := r.VolcanoNumber()
		return ok && v == n
	})
}

// FilterByElevationRange keeps records with elevation (m) inside the bounds.
func (c *Collection) FilterByElevationRange(minVal, maxVal *float64) *Collection {
	return c.Filter(func(r *Record) bool {
		v, ok := r.Elevation()
		return ok && inRange(v, minVal, maxVal)
	})
}

// WithinRadius keeps records within radiusKm of the point.
func (c *Collection) WithinRadius(lat, lon, radiusKm float64) *Collection {
	return c.Filter(func(r *Record) bool {
		return r.DistanceTo(lat, lon) <= radiusKm
	})
}

// SortByDistance orders records nearest first. Records without coordinates go last.
func (c *Collection) SortByDistance(lat, lon float64) *Collection {
	out := c.Records()
	dist := make(map[*Record]float64, len(out))
	for _, r := range out {
		dist[r] = r.DistanceTo(lat, lon)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dist[out[i]] < dist[out[j]]
	})
	return c.derive(out)
}

// SortByField orders records by a field, numerically when both values parse as numbers.
// Absent values sort last.
func (c *Collection) SortByField(name string, desc bool) *Collection {
	out := c.Records()
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].Get(name)
		b, bok := out[j].Get(name)
		if !aok || !bok {
			return aok && !bok
		}
		if af, aerr := strconv.ParseFloat(a, 64); aerr == nil {
			if bf, berr := strconv.ParseFloat(b, 64); berr == nil {
				if desc {
					return af > bf
				}
				return af < bf
			}
		}
		if desc {
			return fold(a) > fold(b)
		}
		return fold(a) < fold(b)
	})
	return c.derive(out)
}

// VolcanoNumbers returns the sorted unique volcano numbers referenced by the collection.
func (c *Collection) VolcanoNumbers() []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, r := range c.records {
		if n, ok := r.VolcanoNumber(); ok {
			if _, dup := seen[n]; !dup {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Countries returns the sorted unique countries.
func (c *Collection) Countries() []string {
	return c.distinct(func(r *Record) string { return r.Country() })
}

// VolcanoTypes returns the sorted unique primary volcano types.
func (c *Collection) VolcanoTypes() []string {
	return c.distinct(func(r *Record) string { return r.VolcanoType() })
}

func (c *Collection) distinct(get func(*Record) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range c.records {
		v := get(r)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Query bundles the common filters applied by the CLI and HTTP API.
type Query struct {
	Country  string
	Name     string
	Type     string
	Volcano  int64
	MinElev  *float64
	MaxElev  *float64
	Lat      *float64
	Lon      *float64
	RadiusKm *float64
	Limit    int
}

// Apply runs the query filters in a fixed order. When a point is given the
// result is sorted by distance, and limited to RadiusKm if set.
func (q Query) Apply(c *Collection) *Collection {
	out := c
	if q.Country != "" {
		out = out.FilterByCountry(q.Country)
	}
	if q.Name != "" {
		out = out.FilterByName(q.Name)
	}
	if q.Type != "" {
		out = out.FilterByType(q.Type)
	}
	if q.Volcano != 0 {
		out = out.FilterByVolcanoNumber(q.Volcano)
	}
	if q.MinElev != nil || q.MaxElev != nil {
		out = out.FilterByElevationRange(q.MinElev, q.MaxElev)
	}
	if q.Lat != nil && q.Lon != nil {
		if q.RadiusKm != nil {
			out = out.WithinRadius(*q.Lat, *q.Lon, *q.RadiusKm)
		}
		out = out.SortByDistance(*q.Lat, *q.Lon)
	}
	if q.Limit > 0 {
		out = out.Head(q.Limit)
	}
	return out
}
