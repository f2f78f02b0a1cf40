package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/export"
)

var (
	exportSel    selection
	exportEntity string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write records to CSV, GeoJSON, XLSX, Shapefile or SQLite",
	Long: `Resolves the selected records, applies the filters, and writes them to a file.

Without --out the file is named after the collection in the current directory,
e.g. holocene_volcanoes.geojson. Spatial formats omit records without coordinates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, err := dataset.ParseEntity(exportEntity)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		coll, err := exportSel.resolve(cmd, entity)
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = export.DefaultPath(".", coll, format)
		}
		omitted, err := export.ToFile(cmd.Context(), path, format, coll)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d %s to %s\n", coll.Len()-len(omitted), entity, path)
		if len(omitted) > 0 {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d records without coordinates omitted\n", len(omitted))
		}
		return nil
	},
}

func init() {
	exportSel.bind(exportCmd.Flags(), 0)
	exportCmd.Flags().StringVar(&exportEntity, "entity", "volcanoes", "volcanoes or eruptions")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv, geojson, xlsx, shp or sqlite")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path")
	rootCmd.AddCommand(exportCmd)
}
