package dataset

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Dataset
		err   bool
	}{
		{"holocene_volcanoes", HoloceneVolcanoes, false},
		{"HOLOCENE_ERUPTIONS", HoloceneEruptions, false},
		{" pleistocene_volcanoes ", PleistoceneVolcanoes, false},
		{"pleistocene_eruptions", PleistoceneEruptions, false},
		{"miocene_volcanoes", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		d, err := Parse(tt.input)
		if tt.err {
			assert.Error(t, err, "input: %q", tt.input)
			continue
		}
		assert.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.want, d)
	}
}

func TestParse_ErrorListsValidNames(t *testing.T) {
	_, err := Parse("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holocene_volcanoes")
	assert.Contains(t, err.Error(), "pleistocene_eruptions")
}

func TestParseList(t *testing.T) {
	ds, err := ParseList([]string{"holocene_volcanoes", "pleistocene_eruptions"})
	require.NoError(t, err)
	assert.Equal(t, []Dataset{HoloceneVolcanoes, PleistoceneEruptions}, ds)

	ds, err = ParseList(nil)
	require.NoError(t, err)
	assert.Nil(t, ds)

	_, err = ParseList([]string{"holocene_volcanoes", "bad"})
	assert.Error(t, err)
}

func TestAll_EnumOrder(t *testing.T) {
	assert.Equal(t, []Dataset{HoloceneVolcanoes, HoloceneEruptions, PleistoceneVolcanoes, PleistoceneEruptions}, All())
	assert.Equal(t, 0, HoloceneVolcanoes.Index())
	assert.Equal(t, 3, PleistoceneEruptions.Index())
	assert.Equal(t, -1, Dataset("x").Index())
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	assert.Equal(t, HoloceneVolcanoes, All()[0])
}

func TestEpochAndEntity(t *testing.T) {
	assert.Equal(t, Holocene, HoloceneEruptions.Epoch())
	assert.Equal(t, Eruptions, HoloceneEruptions.Entity())
	assert.Equal(t, Pleistocene, PleistoceneVolcanoes.Epoch())
	assert.Equal(t, Volcanoes, PleistoceneVolcanoes.Entity())
	assert.Equal(t, PleistoceneEruptions, For(Pleistocene, Eruptions))
	assert.Equal(t, HoloceneVolcanoes, For(Holocene, Volcanoes))
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("Volcano")
	require.NoError(t, err)
	assert.Equal(t, Volcanoes, e)

	e, err = ParseEntity("eruptions")
	require.NoError(t, err)
	assert.Equal(t, Eruptions, e)

	_, err = ParseEntity("lava")
	assert.Error(t, err)
}

func TestIDField(t *testing.T) {
	assert.Equal(t, "Volcano_Number", Volcanoes.IDField())
	assert.Equal(t, "Eruption_Number", Eruptions.IDField())
}

func TestURL(t *testing.T) {
	raw, err := HoloceneVolcanoes.URL("")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "webservices.volcano.si.edu", u.Host)
	assert.Equal(t, "/geoserver/GVP-VOTW/ows", u.Path)

	q := u.Query()
	assert.Equal(t, "WFS", q.Get("service"))
	assert.Equal(t, "1.0.0", q.Get("version"))
	assert.Equal(t, "GetFeature", q.Get("request"))
	assert.Equal(t, "GVP-VOTW:Smithsonian_VOTW_Holocene_Volcanoes", q.Get("typeName"))
	assert.Equal(t, "csv", q.Get("outputFormat"))
}

func TestURL_CustomBase(t *testing.T) {
	raw, err := PleistoceneEruptions.URL("http://127.0.0.1:9999/ows")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", u.Host)
	assert.Equal(t, "GVP-VOTW:Smithsonian_VOTW_Pleistocene_Eruptions", u.Query().Get("typeName"))
}

func TestURL_Unknown(t *testing.T) {
	_, err := Dataset("bogus").URL("")
	assert.Error(t, err)
}

func TestParseCadence(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   bool
	}{
		{"", "never", false},
		{"never", "never", false},
		{"Daily", "daily", false},
		{"weekly", "weekly", false},
		{"monthly", "monthly", false},
		{"72h", "72h0m0s", false},
		{"-1h", "", true},
		{"fortnightly", "", true},
	}
	for _, tt := range tests {
		c, err := ParseCadence(tt.input)
		if tt.err {
			assert.Error(t, err, "input: %q", tt.input)
			continue
		}
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.want, c.String())
	}
}

func TestCadence_Stale(t *testing.T) {
	// Wednesday 2024-05-15 12:00 UTC
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cadence Cadence
		last    time.Time
		want    bool
	}{
		{"never keeps old data", Never, now.AddDate(-5, 0, 0), false},
		{"daily same day", Daily, time.Date(2024, 5, 15, 1, 0, 0, 0, time.UTC), false},
		{"daily yesterday", Daily, time.Date(2024, 5, 14, 23, 0, 0, 0, time.UTC), true},
		{"weekly this monday", Weekly, time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC), false},
		{"weekly last sunday", Weekly, time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC), true},
		{"monthly this month", Monthly, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"monthly last month", Monthly, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), true},
		{"max age fresh", MaxAge(24 * time.Hour), now.Add(-23 * time.Hour), false},
		{"max age expired", MaxAge(24 * time.Hour), now.Add(-25 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cadence.Stale(now, tt.last))
		})
	}
}
