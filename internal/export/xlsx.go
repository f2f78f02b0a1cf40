package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/volcanoes/internal/record"
)

const maxSheetName = 31

// WriteXLSX writes one sheet named after the collection with a header row.
// Numeric values are stored as numbers.
func WriteXLSX(w io.Writer, c *record.Collection) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(truncateBytes(c.Name(), maxSheetName))
	if err != nil {
		return eris.Wrap(err, "export xlsx: add sheet")
	}

	cols := c.Columns()
	header := sheet.AddRow()
	for _, col := range cols {
		header.AddCell().SetString(col)
	}
	for _, r := range c.Records() {
		row := sheet.AddRow()
		for _, v := range r.Values(cols) {
			cell := row.AddCell()
			switch n := propertyValue(v).(type) {
			case int64:
				cell.SetInt64(n)
			case float64:
				cell.SetFloat(n)
			default:
				cell.SetString(v)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export xlsx: write")
	}
	return nil
}
