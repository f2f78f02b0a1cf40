package record

import (
	"github.com/sells-group/volcanoes/internal/dataset"
)

// Collection is an ordered set of records of one entity type. Order carries no
// meaning beyond reproducibility.
type Collection struct {
	entity   dataset.Entity
	datasets []dataset.Dataset
	columns  []string
	records  []*Record
}

// NewCollection creates a collection. columns is the stable field order used for export.
func NewCollection(entity dataset.Entity, datasets []dataset.Dataset, columns []string, records []*Record) *Collection {
	c := &Collection{
		entity:   entity,
		datasets: append([]dataset.Dataset(nil), datasets...),
		columns:  append([]string(nil), columns...),
		records:  append([]*Record(nil), records...),
	}
	return c
}

// Empty returns a collection with no records for the given dataset.
func Empty(ds dataset.Dataset) *Collection {
	return NewCollection(ds.Entity(), []dataset.Dataset{ds}, nil, nil)
}

// derive returns a collection sharing this one's identity with a new record list.
func (c *Collection) derive(records []*Record) *Collection {
	return &Collection{
		entity:   c.entity,
		datasets: c.datasets,
		columns:  c.columns,
		records:  records,
	}
}

// Entity returns the record type held by the collection.
func (c *Collection) Entity() dataset.Entity { return c.entity }

// Datasets returns the source datasets in merge order.
func (c *Collection) Datasets() []dataset.Dataset {
	return append([]dataset.Dataset(nil), c.datasets...)
}

// Name is a label for the collection, e.g. "holocene_volcanoes" or
// "holocene_pleistocene_volcanoes".
func (c *Collection) Name() string {
	if len(c.datasets) == 1 {
		return string(c.datasets[0])
	}
	name := ""
	for _, d := range c.datasets {
		name += string(d.Epoch()) + "_"
	}
	return name + string(c.entity)
}

// Columns returns the field order of the collection.
func (c *Collection) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Len returns the number of records.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// At returns the i-th record.
func (c *Collection) At(i int) *Record { return c.records[i] }

// Records returns a copy of the record list.
func (c *Collection) Records() []*Record {
	return append([]*Record(nil), c.records...)
}

// Slice returns records [start, end), clamped to the collection bounds.
func (c *Collection) Slice(start, end int) *Collection {
	if start < 0 {
		start = 0
	}
	if end > len(c.records) || end < 0 {
		end = len(c.records)
	}
	if start > end {
		start = end
	}
	return c.derive(append([]*Record(nil), c.records[start:end]...))
}

// Head returns the first n records; n <= 0 returns everything.
func (c *Collection) Head(n int) *Collection {
	if n <= 0 {
		return c.derive(c.Records())
	}
	return c.Slice(0, n)
}

// Get returns the first record with the given identifier.
func (c *Collection) Get(id int64) (*Record, bool) {
	for _, r := range c.records {
		if rid, ok := r.ID(); ok && rid == id {
			return r, true
		}
	}
	return nil, false
}
