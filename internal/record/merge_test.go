package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/volcanoes/internal/dataset"
)

func volcanoes(t *testing.T, ds dataset.Dataset, payload string) *Collection {
	t.Helper()
	c, _ := mustParse(t, ds, payload)
	return c
}

func names(c *Collection) []string {
	out := make([]string, 0, c.Len())
	for _, r := range c.Records() {
		out = append(out, r.Name())
	}
	return out
}

func TestMerge_HoloceneWins(t *testing.T) {
	h := volcanoes(t, dataset.HoloceneVolcanoes, "Volcano_Number,Volcano_Name\n1,A\n")
	p := volcanoes(t, dataset.PleistoceneVolcanoes, "Volcano_Number,Volcano_Name\n1,B\n2,C\n")

	m := Merge(h, p)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"A", "C"}, names(m))
	assert.Equal(t, dataset.HoloceneVolcanoes, m.At(0).Dataset())
	assert.Equal(t, dataset.PleistoceneVolcanoes, m.At(1).Dataset())
	assert.Equal(t, []dataset.Dataset{dataset.HoloceneVolcanoes, dataset.PleistoceneVolcanoes}, m.Datasets())
	assert.Equal(t, "holocene_pleistocene_volcanoes", m.Name())
}

func TestMerge_EmptyInputs(t *testing.T) {
	h := volcanoes(t, dataset.HoloceneVolcanoes, "Volcano_Number,Volcano_Name\n1,A\n2,B\n")
	empty := Empty(dataset.PleistoceneVolcanoes)

	assert.Same(t, h, Merge(h, empty))
	assert.Same(t, h, Merge(Empty(dataset.HoloceneVolcanoes), h))
	assert.Equal(t, 0, Merge(Empty(dataset.HoloceneVolcanoes), empty).Len())
}

func TestMerge_ColumnUnion(t *testing.T) {
	h := volcanoes(t, dataset.HoloceneVolcanoes, "Volcano_Number,Volcano_Name,Country\n1,A,Italy\n")
	p := volcanoes(t, dataset.PleistoceneVolcanoes, "Volcano_Number,VolcanoName,Epoch_Period\n2,B,Pleistocene\n")

	m := Merge(h, p)
	assert.Equal(t, []string{"Volcano_Number", "Volcano_Name", "Country", "Epoch_Period"}, m.Columns())
	// Pleistocene records keep their own header, so tolerant lookups still work.
	assert.Equal(t, "B", m.At(1).Name())
	assert.Equal(t, "Pleistocene", m.At(1).GetField("Epoch_Period", ""))
}

func TestMerge_Eruptions(t *testing.T) {
	h := volcanoes(t, dataset.HoloceneEruptions, "Volcano_Number,Volcano_Name,Eruption_Number\n10,A,100\n10,A,101\n")
	p := volcanoes(t, dataset.PleistoceneEruptions, "Volcano_Number,Volcano_Name,Eruption_Number\n10,A,101\n20,B,200\n")

	m := Merge(h, p)
	require.Equal(t, 3, m.Len())
	var ids []int64
	for _, r := range m.Records() {
		id, _ := r.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{100, 101, 200}, ids)
	assert.Equal(t, []int64{10, 20}, m.VolcanoNumbers())
}
