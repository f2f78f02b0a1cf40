package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/volcanoes/internal/record"
)

// WriteCSV writes a header row in the collection's column order followed by
// one row per record.
func WriteCSV(w io.Writer, c *record.Collection) error {
	cols := c.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return eris.Wrap(err, "export csv: write header")
	}
	for _, r := range c.Records() {
		if err := cw.Write(r.Values(cols)); err != nil {
			return eris.Wrap(err, "export csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export csv: flush")
}
