package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func presetsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List band and threshold presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBANDS\tTHRESHOLDS")
			for _, name := range app.Presets.PresetNames() {
				bands, _ := app.Presets.GetBandPreset(name)
				thresholds, _ := app.Presets.GetThresholdPreset(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, bands, thresholds)
			}
			return tw.Flush()
		},
	}
}
