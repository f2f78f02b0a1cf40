package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/export"
	"github.com/sells-group/volcanoes/internal/gvp"
	"github.com/sells-group/volcanoes/internal/record"
)

const geojsonSuffix = ".geojson"

// queryError is a malformed query parameter.
type queryError struct {
	Param string
	Value string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Param, e.Value)
}

type recordsBody struct {
	Collection string              `json:"collection"`
	Count      int                 `json:"count"`
	Warnings   []string            `json:"warnings,omitempty"`
	Records    []map[string]string `json:"records"`
}

// records serves GET /v1/{entity} and GET /v1/{entity}.geojson.
func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "entity")
	name, asGeoJSON := strings.CutSuffix(name, geojsonSuffix)

	entity, err := dataset.ParseEntity(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}

	params := r.URL.Query()
	epochs, q, err := parseParams(params)
	if err != nil {
		writeError(w, err)
		return
	}

	coll, warnings, err := s.svc.GetRecords(r.Context(), entity, epochs, false)
	if err != nil {
		writeError(w, err)
		return
	}
	coll = q.Apply(coll)

	if asGeoJSON {
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := export.WriteGeoJSON(w, coll); err != nil {
			writeError(w, err)
		}
		return
	}

	body := recordsBody{
		Collection: coll.Name(),
		Count:      coll.Len(),
		Records:    make([]map[string]string, 0, coll.Len()),
	}
	for _, wn := range warnings {
		body.Warnings = append(body.Warnings, wn.Error())
	}
	for _, rec := range coll.Records() {
		body.Records = append(body.Records, rec.Fields())
	}
	writeJSON(w, http.StatusOK, body)
}

// parseParams reads epoch flags and the record filters. Holocene is on unless
// holocene=false; Pleistocene is off unless pleistocene=true. The API never
// forces a download.
func parseParams(v url.Values) (gvp.Epochs, record.Query, error) {
	var (
		q      record.Query
		epochs gvp.Epochs
		err    error
	)
	if epochs.Holocene, err = boolParam(v, "holocene", true); err != nil {
		return epochs, q, err
	}
	if epochs.Pleistocene, err = boolParam(v, "pleistocene", false); err != nil {
		return epochs, q, err
	}
	q.Country = v.Get("country")
	q.Name = v.Get("name")
	q.Type = v.Get("type")
	if s := v.Get("volcano"); s != "" {
		n, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return epochs, q, &queryError{Param: "volcano", Value: s}
		}
		q.Volcano = n
	}
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"min_elevation", &q.MinElev},
		{"max_elevation", &q.MaxElev},
		{"lat", &q.Lat},
		{"lon", &q.Lon},
		{"radius_km", &q.RadiusKm},
	} {
		if *p.dst, err = floatParam(v, p.name); err != nil {
			return epochs, q, err
		}
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		return epochs, q, &queryError{Param: "lat/lon", Value: v.Get("lat") + "," + v.Get("lon")}
	}
	if s := v.Get("limit"); s != "" {
		n, perr := strconv.Atoi(s)
		if perr != nil || n < 0 {
			return epochs, q, &queryError{Param: "limit", Value: s}
		}
		q.Limit = n
	}
	return epochs, q, nil
}

func boolParam(v url.Values, name string, def bool) (bool, error) {
	s := v.Get(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &queryError{Param: name, Value: s}
	}
	return b, nil
}

func floatParam(v url.Values, name string) (*float64, error) {
	s := v.Get(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &queryError{Param: name, Value: s}
	}
	return &f, nil
}
