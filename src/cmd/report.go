package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"BandAnalyzer/src/datapush"
	"BandAnalyzer/src/processor"
)

type outputFlags struct {
	format string
	output string
	push   bool
}

func (o *outputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", FormatText, "Output format: text, csv, tsv, xlsx")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output file, stdout for text formats when empty")
	cmd.Flags().BoolVar(&o.push, "push", false, "Also post the report to the configured webhook")
}

func reportCommand(app *App) *cobra.Command {
	var (
		query queryFlags
		out   outputFlags
	)
	cmd := &cobra.Command{
		Use:   "report [export.csv|export.xlsx]",
		Short: "Build band, fail and average tables for one export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.loadDataset(args[0]); err != nil {
				return err
			}
			report := app.analyze(&query)
			return app.publish(cmd, report, &out, filepath.Base(args[0]))
		},
	}
	query.bind(cmd)
	out.bind(cmd)
	return cmd
}

// publish 输出报告, 需要时推送到 webhook
func (a *App) publish(cmd *cobra.Command, report processor.Report, out *outputFlags, source string) error {
	path, err := emit(cmd.OutOrStdout(), out.format, out.output, a.Config.OutputDir, "report", report.Tables())
	if err != nil {
		return err
	}
	if path != "" {
		a.Logger.Info("报告已保存到: " + path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	printDiagnostics(cmd.ErrOrStderr(), report.Diagnostics)
	a.Logger.Info(fmt.Sprintf("参数 %s: %d 个区域, %d 小时, 耗时 %v",
		report.Parameter, len(report.Zones), report.TotalHours, report.Elapsed))

	if !out.push {
		return nil
	}
	pub := datapush.NewPublisher(a.Config)
	if pub == nil {
		return fmt.Errorf("--push requires webhook.url in the configuration")
	}
	payload := datapush.NewPayload(report.Parameter, source, report.Tables(), report.Diagnostics)
	if err := pub.Push(cmd.Context(), payload); err != nil {
		return err
	}
	a.Logger.Info("报告已推送")
	return nil
}
