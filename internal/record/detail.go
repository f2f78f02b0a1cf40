package record

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mitchellh/go-wordwrap"

	"github.com/sells-group/volcanoes/internal/dataset"
)

const summaryWidth = 78

// YearLabel formats a signed year as "1944 CE" or "8300 BCE".
func YearLabel(y int64) string {
	if y < 0 {
		return fmt.Sprintf("%d BCE", -y)
	}
	return fmt.Sprintf("%d CE", y)
}

// PrintDetail writes a full description of one record, with elevation in
// units ("m" or "ft"). Empty fields are left out.
func (r *Record) PrintDetail(out io.Writer, units string) error {
	elev, hasElev, err := r.ElevationIn(units)
	if err != nil {
		return err
	}
	id, _ := r.ID()

	title := strings.ToUpper(r.Name())
	if c := r.Country(); c != "" {
		title += " (" + c + ")"
	}
	if _, err := fmt.Fprintf(out, "%s | %d\n", title, id); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", label, value)
		}
	}

	if r.origin.Entity() == dataset.Eruptions {
		if vn, ok := r.VolcanoNumber(); ok {
			row("Volcano", fmt.Sprintf("%d", vn))
		}
		if y, ok := r.StartYear(); ok {
			row("Start", YearLabel(y))
		}
		if v, ok := r.VEI(); ok {
			row("VEI", fmt.Sprintf("%d", v))
		}
	}

	region := r.Region()
	if sub := r.Subregion(); sub != "" && region != "" {
		region += " / " + sub
	}
	row("Region", region)

	var loc []string
	if lat, lon, ok := r.Coordinates(); ok {
		loc = append(loc, fmt.Sprintf("%.3f, %.3f", lat, lon))
	}
	if hasElev {
		loc = append(loc, fmt.Sprintf("%.0f %s", elev, strings.ToLower(units)))
	}
	row("Location", strings.Join(loc, ", "))
	row("Setting", r.TectonicSetting())
	row("Type", r.VolcanoType())
	row("Rock type", r.MajorRockType())
	row("Epoch", r.GeologicEpoch())
	if y, ok := r.LastEruptionYear(); ok {
		row("Last eruption", YearLabel(y))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	summary := strings.TrimSpace(r.GeologicalSummary())
	if summary == "" {
		return nil
	}
	if _, err := fmt.Fprintln(out, "Geological summary:"); err != nil {
		return err
	}
	for _, line := range strings.Split(wordwrap.WrapString(summary, summaryWidth), "\n") {
		if _, err := fmt.Fprintf(out, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
