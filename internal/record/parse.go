package record

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
)

// ParseWarning describes a row that was skipped while parsing. It is never fatal.
type ParseWarning struct {
	Dataset dataset.Dataset
	Row     int // 1-based data row, header excluded
	Reason  string
}

func (w ParseWarning) Error() string {
	return fmt.Sprintf("%s: row %d skipped: %s", w.Dataset, w.Row, w.Reason)
}

// ParseBytes parses a CSV payload. See Parse.
func ParseBytes(ctx context.Context, ds dataset.Dataset, payload []byte) (*Collection, []ParseWarning, error) {
	return Parse(ctx, ds, bytes.NewReader(payload))
}

// Parse reads a header row followed by data rows. Rows without the dataset's
// identifying field, or with more values than the header, are skipped with a
// ParseWarning. A payload with no header or with broken CSV syntax is an error.
func Parse(ctx context.Context, ds dataset.Dataset, r io.Reader) (*Collection, []ParseWarning, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		TrimSpace:  true,
		LazyQuotes: true,
	})

	var (
		header   *Header
		records  []*Record
		warnings []ParseWarning
		row      int
	)
	idField := ds.Entity().IDField()

	for values := range rowCh {
		if header == nil {
			header = NewHeader(values)
			if _, ok := header.Lookup(idField); !ok {
				// Drain so the reader goroutine can exit.
				for range rowCh {
				}
				<-errCh
				return nil, nil, eris.Errorf("parse %s: header has no %s column", ds, idField)
			}
			continue
		}
		row++

		if len(values) > len(header.columns) {
			warnings = append(warnings, ParseWarning{
				Dataset: ds,
				Row:     row,
				Reason:  fmt.Sprintf("%d values for %d columns", len(values), len(header.columns)),
			})
			continue
		}

		rec := New(ds, header, values)
		if _, ok := rec.ID(); !ok {
			reason := "missing " + idField
			if v, present := rec.Get(idField); present {
				reason = fmt.Sprintf("invalid %s %q", idField, v)
			}
			warnings = append(warnings, ParseWarning{Dataset: ds, Row: row, Reason: reason})
			continue
		}
		records = append(records, rec)
	}

	if err := <-errCh; err != nil {
		return nil, nil, eris.Wrapf(err, "parse %s", ds)
	}
	if header == nil {
		return nil, nil, eris.Errorf("parse %s: empty payload", ds)
	}

	return NewCollection(ds.Entity(), []dataset.Dataset{ds}, header.columns, records), warnings, nil
}
