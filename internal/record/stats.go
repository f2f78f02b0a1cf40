package record

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/volcanoes/internal/dataset"
)

// Stats summarizes a collection. Elevation figures are only set for volcano
// collections that have at least one elevation.
type Stats struct {
	Entity          dataset.Entity `json:"entity" yaml:"entity"`
	Total           int            `json:"total" yaml:"total"`
	Countries       int            `json:"countries" yaml:"countries"`
	VolcanoTypes    int            `json:"volcano_types,omitempty" yaml:"volcano_types,omitempty"`
	UniqueVolcanoes int            `json:"unique_volcanoes,omitempty" yaml:"unique_volcanoes,omitempty"`
	AvgElevation    *float64       `json:"avg_elevation_m,omitempty" yaml:"avg_elevation_m,omitempty"`
	MinElevation    *float64       `json:"min_elevation_m,omitempty" yaml:"min_elevation_m,omitempty"`
	MaxElevation    *float64       `json:"max_elevation_m,omitempty" yaml:"max_elevation_m,omitempty"`
}

// Stats computes summary statistics.
func (c *Collection) Stats() Stats {
	s := Stats{
		Entity:    c.entity,
		Total:     len(c.records),
		Countries: len(c.Countries()),
	}

	if c.entity == dataset.Eruptions {
		s.UniqueVolcanoes = len(c.VolcanoNumbers())
		return s
	}

	s.VolcanoTypes = len(c.VolcanoTypes())
	var sum, lo, hi float64
	var n int
	for _, r := range c.records {
		e, ok := r.Elevation()
		if !ok {
			continue
		}
		if n == 0 || e < lo {
			lo = e
		}
		if n == 0 || e > hi {
			hi = e
		}
		sum += e
		n++
	}
	if n > 0 {
		avg := sum / float64(n)
		s.AvgElevation, s.MinElevation, s.MaxElevation = &avg, &lo, &hi
	}
	return s
}

// Print writes a numbered table of up to limit records (limit <= 0 prints all).
func (c *Collection) Print(out io.Writer, limit int) error {
	rows := c.records
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s: %d %s\n", c.Name(), len(c.records), c.entity)

	if c.entity == dataset.Eruptions {
		_, _ = fmt.Fprintln(w, "#\tERUPTION\tVOLCANO\tNAME\tSTART\tVEI")
		for i, r := range rows {
			en, _ := r.EruptionNumber()
			vn, _ := r.VolcanoNumber()
			_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\n",
				i+1, en, vn, r.Name(), optInt(r.StartYear()), optInt(r.VEI()))
		}
	} else {
		_, _ = fmt.Fprintln(w, "#\tNUMBER\tNAME\tCOUNTRY\tLAT\tLON\tELEV\tLAST ERUPTION")
		for i, r := range rows {
			id, _ := r.ID()
			lat, lon := "-", "-"
			if la, lo, ok := r.Coordinates(); ok {
				lat, lon = fmt.Sprintf("%+.3f", la), fmt.Sprintf("%+.3f", lo)
			}
			elev := "-"
			if e, ok := r.Elevation(); ok {
				elev = fmt.Sprintf("%.0fm", e)
			}
			_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				i+1, id, r.Name(), r.Country(), lat, lon, elev, optInt(r.LastEruptionYear()))
		}
	}

	if len(rows) < len(c.records) {
		_, _ = fmt.Fprintf(w, "... and %d more\n", len(c.records)-len(rows))
	}
	return w.Flush()
}

func optInt(v int64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d", v)
}
