package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"BandAnalyzer/src/datasource/file"
	"BandAnalyzer/src/processor"
)

func daylightCommand(app *App) *cobra.Command {
	var (
		opts       processor.DaylightOptions
		zoneFilter string
		zoneMode   string
		skipRows   int
		out        outputFlags
	)
	cmd := &cobra.Command{
		Use:   "daylight [summary.csv|summary.xlsx]",
		Short: "Summarise sDA / UDI / ASE results per zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := file.ReadFile(args[0], app.readOptions())
			if err != nil {
				return err
			}
			if skipRows > 0 && skipRows < len(rows) {
				rows = rows[skipRows:]
			}

			d := app.Presets.Daylight
			if !cmd.Flags().Changed("sda-threshold") {
				opts.SDAThreshold = d.SDAThreshold
			}
			if !cmd.Flags().Changed("udi-threshold") {
				opts.UDIThreshold = d.UDIThreshold
			}
			opts.ZoneFilter = processor.ZoneFilter{Substring: zoneFilter, Mode: processor.ParseZoneMode(zoneMode)}

			report, err := processor.SummarizeDaylight(rows, opts)
			if err != nil {
				return err
			}
			for _, diag := range report.Diagnostics {
				app.Logger.Warning(diag)
			}

			path, err := emit(cmd.OutOrStdout(), out.format, out.output, app.Config.OutputDir, "daylight", report.Tables())
			if err != nil {
				return err
			}
			if path != "" {
				app.Logger.Info("采光报告已保存到: " + path)
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			printDiagnostics(cmd.ErrOrStderr(), report.Diagnostics)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&opts.SDAThreshold, "sda-threshold", processor.DefaultDaylightThreshold, "sDA pass threshold (%)")
	f.Float64Var(&opts.UDIThreshold, "udi-threshold", processor.DefaultDaylightThreshold, "UDI pass threshold (%)")
	f.StringSliceVar(&opts.Zones, "zones", nil, "Zones to include, all when empty")
	f.StringVar(&zoneFilter, "zone-filter", "", "Case-insensitive zone name substring")
	f.StringVar(&zoneMode, "zone-mode", "exclude", "Zone filter mode: include or exclude")
	f.IntVar(&skipRows, "skip", 0, "Rows before the header row")
	cmd.Flags().StringVarP(&out.format, "format", "f", FormatText, "Output format: text, csv, tsv, xlsx")
	cmd.Flags().StringVarP(&out.output, "output", "o", "", "Output file, stdout for text formats when empty")
	return cmd
}
