package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"BandAnalyzer/src/datapush"
	"BandAnalyzer/src/datasource/file"
)

func watchCommand(app *App) *cobra.Command {
	var (
		query queryFlags
		out   outputFlags
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the newest export from the data directory and write reports periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.watch(ctx, &query, &out)
		},
	}
	query.bind(cmd)
	cmd.Flags().StringVarP(&out.format, "format", "f", FormatXLSX, "Report format: xlsx, csv, tsv, text")
	cmd.Flags().BoolVar(&out.push, "push", false, "Also post each report to the configured webhook")
	return cmd
}

// watch 阻塞直到 ctx 结束
func (a *App) watch(ctx context.Context, q *queryFlags, out *outputFlags) error {
	dir := a.Config.DataDir
	monitor, err := file.NewFileMonitor(dir)
	if err != nil {
		return fmt.Errorf("failed to create file monitor: %w", err)
	}
	defer monitor.Close()

	// 初始加载目录中最新的文件
	latest, err := file.LatestFile(dir)
	if err != nil {
		return err
	}
	if latest != "" {
		if _, err := a.loadDataset(latest); err != nil {
			a.Logger.Error(err.Error())
		}
	}

	// SIGHUP 重新打开日志文件, 配合外部 logrotate
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.Logger.Reopen(""); err != nil {
					fmt.Fprintf(os.Stderr, "reopen log: %v\n", err)
				}
			}
		}
	}()

	interval := time.Duration(a.Config.ReportInterval)
	if interval <= 0 {
		interval = time.Hour
	}
	cronSpec := fmt.Sprintf("@every %s", interval)

	var jobs cronJobs
	c := cron.New()
	err = c.AddFunc(cronSpec, jobs.wrap(func() {
		if _, err := a.scheduledReport(ctx, q, out); err != nil {
			a.Logger.Error("定时报告失败: " + err.Error())
		}
	}))
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}
	c.Start()
	defer jobs.stop(c)

	a.Logger.Info(fmt.Sprintf("监控目录 %s, 报告间隔 %v", dir, interval))
	err = monitor.Watch(ctx, func(path string) {
		if _, err := a.loadDataset(path); err != nil {
			// 导入失败时保留上一份数据集
			a.Logger.Error(err.Error())
		}
	})
	a.Logger.Info("监控已停止")
	return err
}

// scheduledReport 用当前数据集快照生成报告文件, 没有数据时跳过
func (a *App) scheduledReport(ctx context.Context, q *queryFlags, out *outputFlags) (string, error) {
	if err := a.Logger.CheckRotate(a.Config); err != nil {
		a.Logger.Warning(err.Error())
	}
	ds := a.Store.GetDataset()
	if ds.Len() == 0 {
		a.Logger.Info("没有可用数据, 跳过本次报告")
		return "", nil
	}

	report := a.analyze(q)
	format := out.format
	ext := format
	if ext == FormatText {
		ext = "txt"
	}
	path := defaultReportPath(a.Config.OutputDir, "report", ext)
	if _, err := emit(nil, format, path, a.Config.OutputDir, "report", report.Tables()); err != nil {
		return "", err
	}
	a.Logger.Info(fmt.Sprintf("报告已保存到: %s (%s)", path, ds.Source()))

	if out.push {
		if pub := datapush.NewPublisher(a.Config); pub != nil {
			payload := datapush.NewPayload(report.Parameter, ds.Source(), report.Tables(), report.Diagnostics)
			if err := pub.Push(ctx, payload); err != nil {
				return path, err
			}
		}
	}
	return path, nil
}
