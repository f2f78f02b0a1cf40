package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/db"
)

var (
	loadSel      selection
	loadEntity   string
	loadTable    string
	loadTruncate bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Copy records into a Postgres table",
	Long: `Resolves the selected records and copies them into store.database_url.

The table is created if missing with one TEXT column per field and a geom_ewkb
BYTEA column holding the location. Use --truncate to replace existing rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("load"); err != nil {
			return err
		}
		entity, err := dataset.ParseEntity(loadEntity)
		if err != nil {
			return err
		}
		coll, err := loadSel.resolve(cmd, entity)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "load")
		}
		defer pool.Close()

		n, err := db.Load(ctx, pool, db.LoadConfig{
			Schema:   cfg.Store.Schema,
			Table:    loadTable,
			Truncate: loadTruncate,
		}, coll)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d %s\n", n, entity)
		return nil
	},
}

func init() {
	loadSel.bind(loadCmd.Flags(), 0)
	loadCmd.Flags().StringVar(&loadEntity, "entity", "volcanoes", "volcanoes or eruptions")
	loadCmd.Flags().StringVar(&loadTable, "table", "", "target table (default: collection name)")
	loadCmd.Flags().BoolVar(&loadTruncate, "truncate", false, "empty the table before loading")
	rootCmd.AddCommand(loadCmd)
}
