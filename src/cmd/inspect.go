package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"BandAnalyzer/src/timeseries"
)

func inspectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [export.csv|export.xlsx]",
		Short: "Show rows, zones and parameters found in an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := app.loadDataset(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			size := "?"
			if info, err := os.Stat(args[0]); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(w, "source:     %s (%s)\n", ds.Source(), size)
			fmt.Fprintf(w, "rows:       %s\n", humanize.Comma(int64(ds.Len())))
			fmt.Fprintf(w, "dropped:    %s\n", humanize.Comma(int64(ds.Dropped())))
			fmt.Fprintf(w, "zones:      %s\n", strings.Join(ds.Zones(), ", "))
			fmt.Fprintf(w, "parameters: %s\n", strings.Join(ds.Parameters(), ", "))
			if n := ds.Len(); n > 0 {
				dates := ds.Frame().Col(timeseries.ColDate).Records()
				fmt.Fprintf(w, "dates:      %s .. %s\n", dates[0], dates[n-1])
			}
			printDiagnostics(cmd.ErrOrStderr(), ds.Diagnostics())
			return nil
		},
	}
}
