package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/volcanoes/internal/gvp"
)

var (
	showHolocene    bool
	showPleistocene bool
	showRefresh     bool
	showUnits       string
	showEruptions   bool
	showOutput      string
)

var showCmd = &cobra.Command{
	Use:   "show <volcano-number>",
	Short: "Show one volcano in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("volcano number must be an integer, got %q", args[0])
		}
		switch showUnits {
		case "m", "ft":
		default:
			return eris.Errorf("--units must be m or ft, got %q", showUnits)
		}

		client, err := newClient("fetch")
		if err != nil {
			return err
		}
		epochs := gvp.Epochs{Holocene: showHolocene, Pleistocene: showPleistocene}
		volcanoes, warnings, err := client.GetVolcanoes(cmd.Context(), epochs, showRefresh)
		if err != nil {
			return err
		}
		reportWarnings(cmd.ErrOrStderr(), warnings)

		v, ok := volcanoes.Get(n)
		if !ok {
			return eris.Errorf("volcano %d not found in %s", n, volcanoes.Name())
		}

		out := cmd.OutOrStdout()
		if showOutput == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v.Fields())
		}
		if showOutput != "table" {
			return fmt.Errorf("unknown output %q (want table or json)", showOutput)
		}
		if err := v.PrintDetail(out, showUnits); err != nil {
			return err
		}
		if !showEruptions {
			return nil
		}

		eruptions, warnings, err := client.GetEruptions(cmd.Context(), epochs, showRefresh)
		if err != nil {
			return err
		}
		reportWarnings(cmd.ErrOrStderr(), warnings)
		history := eruptions.FilterByVolcanoNumber(n)
		_, _ = fmt.Fprintf(out, "\nEruptive history (%d):\n", history.Len())
		return history.Print(out, 0)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showHolocene, "holocene", true, "search Holocene volcanoes")
	showCmd.Flags().BoolVar(&showPleistocene, "pleistocene", false, "search Pleistocene volcanoes")
	showCmd.Flags().BoolVar(&showRefresh, "refresh", false, "re-download even if cached")
	showCmd.Flags().StringVar(&showUnits, "units", "m", "elevation units: m or ft")
	showCmd.Flags().BoolVar(&showEruptions, "eruptions", false, "also list the volcano's eruptions")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "output format: table, json")
	rootCmd.AddCommand(showCmd)
}
