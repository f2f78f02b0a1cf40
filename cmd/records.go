package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/export"
	"github.com/sells-group/volcanoes/internal/gvp"
	"github.com/sells-group/volcanoes/internal/record"
)

// selection holds the flags shared by commands that resolve records.
type selection struct {
	holocene    bool
	pleistocene bool
	refresh     bool

	country  string
	name     string
	vtype    string
	volcano  int64
	minElev  float64
	maxElev  float64
	lat      float64
	lon      float64
	radiusKm float64
	limit    int
}

func (s *selection) bind(fs *pflag.FlagSet, defaultLimit int) {
	fs.BoolVar(&s.holocene, "holocene", true, "include Holocene data")
	fs.BoolVar(&s.pleistocene, "pleistocene", false, "include Pleistocene data")
	fs.BoolVar(&s.refresh, "refresh", false, "re-download even if cached")
	fs.StringVar(&s.country, "country", "", "filter by country (accent and case insensitive)")
	fs.StringVar(&s.name, "name", "", "filter by volcano name substring")
	fs.StringVar(&s.vtype, "type", "", "filter by primary volcano type substring")
	fs.Int64Var(&s.volcano, "volcano", 0, "filter by volcano number")
	fs.Float64Var(&s.minElev, "min-elevation", 0, "minimum elevation in meters")
	fs.Float64Var(&s.maxElev, "max-elevation", 0, "maximum elevation in meters")
	fs.Float64Var(&s.lat, "lat", 0, "latitude for distance sorting")
	fs.Float64Var(&s.lon, "lon", 0, "longitude for distance sorting")
	fs.Float64Var(&s.radiusKm, "radius-km", 0, "keep records within this distance of --lat/--lon")
	fs.IntVar(&s.limit, "limit", defaultLimit, "maximum records (0 = all)")
}

func (s *selection) epochs() gvp.Epochs {
	return gvp.Epochs{Holocene: s.holocene, Pleistocene: s.pleistocene}
}

// query builds the record filters. Only flags the user set are applied.
func (s *selection) query(fs *pflag.FlagSet) (record.Query, error) {
	q := record.Query{
		Country: s.country,
		Name:    s.name,
		Type:    s.vtype,
		Volcano: s.volcano,
		Limit:   s.limit,
	}
	if fs.Changed("min-elevation") {
		q.MinElev = &s.minElev
	}
	if fs.Changed("max-elevation") {
		q.MaxElev = &s.maxElev
	}
	if fs.Changed("lat") != fs.Changed("lon") {
		return q, eris.New("--lat and --lon must be given together")
	}
	if fs.Changed("lat") {
		q.Lat, q.Lon = &s.lat, &s.lon
		if fs.Changed("radius-km") {
			q.RadiusKm = &s.radiusKm
		}
	} else if fs.Changed("radius-km") {
		return q, eris.New("--radius-km needs --lat and --lon")
	}
	return q, nil
}

// resolve fetches the selected records and applies the filters.
func (s *selection) resolve(cmd *cobra.Command, entity dataset.Entity) (*record.Collection, error) {
	q, err := s.query(cmd.Flags())
	if err != nil {
		return nil, err
	}
	client, err := newClient("fetch")
	if err != nil {
		return nil, err
	}
	coll, warnings, err := client.GetRecords(cmd.Context(), entity, s.epochs(), s.refresh)
	if err != nil {
		return nil, err
	}
	reportWarnings(cmd.ErrOrStderr(), warnings)
	return q.Apply(coll), nil
}

func newRecordsCmd(entity dataset.Entity, short string) *cobra.Command {
	var (
		sel    selection
		output string
	)
	cmd := &cobra.Command{
		Use:   string(entity),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := sel.resolve(cmd, entity)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch output {
			case "table":
				return coll.Print(out, 0)
			case "csv":
				return export.WriteCSV(out, coll)
			case "geojson":
				_, err := export.WriteGeoJSON(out, coll)
				return err
			case "json":
				rows := make([]map[string]string, 0, coll.Len())
				for _, r := range coll.Records() {
					rows = append(rows, r.Fields())
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			default:
				return fmt.Errorf("unknown output %q (want table, json, csv or geojson)", output)
			}
		},
	}
	sel.bind(cmd.Flags(), 20)
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json, csv, geojson")
	return cmd
}

var (
	listCmd      = newRecordsCmd(dataset.Volcanoes, "List volcanoes")
	eruptionsCmd = newRecordsCmd(dataset.Eruptions, "List eruptions")
)

func init() {
	listCmd.Use = "list"
	listCmd.Aliases = []string{"volcanoes"}
	rootCmd.AddCommand(listCmd, eruptionsCmd)
}
