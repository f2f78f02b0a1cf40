package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/record"
)

var (
	statsSel    selection
	statsEntity string
	statsOutput string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize volcanoes or eruptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, err := dataset.ParseEntity(statsEntity)
		if err != nil {
			return err
		}
		coll, err := statsSel.resolve(cmd, entity)
		if err != nil {
			return err
		}
		return writeStats(cmd.OutOrStdout(), coll.Name(), coll.Stats(), statsOutput)
	},
}

func init() {
	statsSel.bind(statsCmd.Flags(), 0)
	statsCmd.Flags().StringVar(&statsEntity, "entity", "volcanoes", "volcanoes or eruptions")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(statsCmd)
}

func writeStats(out io.Writer, name string, s record.Stats, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(s)
	case "table":
	default:
		return fmt.Errorf("unknown output %q (want table, json or yaml)", format)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Collection:\t%s\n", name)
	_, _ = fmt.Fprintf(w, "Total %s:\t%d\n", s.Entity, s.Total)
	_, _ = fmt.Fprintf(w, "Countries:\t%d\n", s.Countries)
	if s.Entity == dataset.Eruptions {
		_, _ = fmt.Fprintf(w, "Unique volcanoes:\t%d\n", s.UniqueVolcanoes)
		return w.Flush()
	}
	_, _ = fmt.Fprintf(w, "Volcano types:\t%d\n", s.VolcanoTypes)
	if s.AvgElevation != nil {
		_, _ = fmt.Fprintf(w, "Average elevation:\t%.0f m\n", *s.AvgElevation)
		_, _ = fmt.Fprintf(w, "Elevation range:\t%.0f m to %.0f m\n", *s.MinElevation, *s.MaxElevation)
	}
	return w.Flush()
}
