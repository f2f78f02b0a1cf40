// Package dataset names the four GVP Volcanoes of the World datasets and builds their WFS query URLs.
package dataset

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the GVP GeoServer OWS endpoint.
const DefaultBaseURL = "https://webservices.volcano.si.edu/geoserver/GVP-VOTW/ows"

// Entity is the kind of record a dataset holds.
type Entity string

const (
	Volcanoes Entity = "volcanoes"
	Eruptions Entity = "eruptions"
)

// ParseEntity converts "volcanoes" or "eruptions" (singular accepted) into an Entity.
func ParseEntity(s string) (Entity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volcanoes", "volcano":
		return Volcanoes, nil
	case "eruptions", "eruption":
		return Eruptions, nil
	default:
		return "", eris.Errorf("unknown entity: %q (valid: volcanoes, eruptions)", s)
	}
}

// IDField returns the upstream column that identifies a record of this entity.
func (e Entity) IDField() string {
	if e == Eruptions {
		return "Eruption_Number"
	}
	return "Volcano_Number"
}

// Epoch is the geologic period a dataset covers.
type Epoch string

const (
	Holocene    Epoch = "holocene"
	Pleistocene Epoch = "pleistocene"
)

// Dataset is one of the four fixed GVP data sources (epoch x entity).
type Dataset string

const (
	HoloceneVolcanoes    Dataset = "holocene_volcanoes"
	HoloceneEruptions    Dataset = "holocene_eruptions"
	PleistoceneVolcanoes Dataset = "pleistocene_volcanoes"
	PleistoceneEruptions Dataset = "pleistocene_eruptions"
)

// all is the enum order. It is used for deterministic iteration and tie-breaks.
var all = []Dataset{
	HoloceneVolcanoes,
	HoloceneEruptions,
	PleistoceneVolcanoes,
	PleistoceneEruptions,
}

// typeNames maps datasets to their WFS feature type names.
var typeNames = map[Dataset]string{
	HoloceneVolcanoes:    "GVP-VOTW:Smithsonian_VOTW_Holocene_Volcanoes",
	HoloceneEruptions:    "GVP-VOTW:Smithsonian_VOTW_Holocene_Eruptions",
	PleistoceneVolcanoes: "GVP-VOTW:Smithsonian_VOTW_Pleistocene_Volcanoes",
	PleistoceneEruptions: "GVP-VOTW:Smithsonian_VOTW_Pleistocene_Eruptions",
}

// All returns every dataset in enum order.
func All() []Dataset {
	out := make([]Dataset, len(all))
	copy(out, all)
	return out
}

// AllNames returns every dataset name in enum order.
func AllNames() []string {
	out := make([]string, len(all))
	for i, d := range all {
		out[i] = string(d)
	}
	return out
}

// Parse converts a dataset name into a Dataset.
func Parse(s string) (Dataset, error) {
	d := Dataset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typeNames[d]; !ok {
		return "", eris.Errorf("unknown dataset: %q (valid: %s)", s, strings.Join(AllNames(), ", "))
	}
	return d, nil
}

// ParseList parses each name; an empty list yields nil.
func ParseList(names []string) ([]Dataset, error) {
	var out []Dataset
	for _, n := range names {
		d, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// For returns the dataset holding entity records for the given epoch.
func For(epoch Epoch, entity Entity) Dataset {
	return Dataset(string(epoch) + "_" + string(entity))
}

// Valid reports whether d is one of the four known datasets.
func (d Dataset) Valid() bool {
	_, ok := typeNames[d]
	return ok
}

func (d Dataset) String() string { return string(d) }

// Epoch returns the epoch half of the dataset identity.
func (d Dataset) Epoch() Epoch {
	if strings.HasPrefix(string(d), string(Pleistocene)) {
		return Pleistocene
	}
	return Holocene
}

// Entity returns the entity half of the dataset identity.
func (d Dataset) Entity() Entity {
	if strings.HasSuffix(string(d), string(Eruptions)) {
		return Eruptions
	}
	return Volcanoes
}

// TypeName returns the WFS feature type name.
func (d Dataset) TypeName() string {
	return typeNames[d]
}

// Index returns the enum position of d, or -1 if unknown.
func (d Dataset) Index() int {
	for i, x := range all {
		if x == d {
			return i
		}
	}
	return -1
}

// URL builds the WFS GetFeature CSV request for the dataset against baseURL.
// An empty baseURL uses DefaultBaseURL.
func (d Dataset) URL(baseURL string) (string, error) {
	if !d.Valid() {
		return "", eris.Errorf("unknown dataset: %q", string(d))
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: parse base url %q", baseURL)
	}

	q := u.Query()
	q.Set("service", "WFS")
	q.Set("version", "1.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeName", d.TypeName())
	q.Set("outputFormat", "csv")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
