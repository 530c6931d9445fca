package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"BandAnalyzer/src/datasource/email"
	"BandAnalyzer/src/processor"
)

type mailFlags struct {
	keyword string
	send    bool
	every   bool
}

func mailCommand(app *App) *cobra.Command {
	var (
		query queryFlags
		mf    mailFlags
	)
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Fetch the newest export from the mailbox and analyse it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mf.keyword == "" {
				mf.keyword = app.Config.Email.TargetSubject
			}
			handler := email.NewAttachmentHandler(mf.keyword, app.Config.DataDir, app.Logger)
			client := email.NewEmailClient(app.Config.Email.Server, app.Config.Email.Username, app.Config.Email.Password, app.Logger)

			if !mf.every {
				return app.checkMail(client, handler, &query, &mf)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.pollMail(ctx, client, handler, &query, &mf)
		},
	}
	query.bind(cmd)
	cmd.Flags().StringVar(&mf.keyword, "subject", "", "Subject keyword, email.target_subject when empty")
	cmd.Flags().BoolVar(&mf.send, "send", false, "Mail the XLSX report back over SMTP")
	cmd.Flags().BoolVar(&mf.every, "every", false, "Keep checking at email.check_interval")
	return cmd
}

// pollMail 按检查间隔定时执行 checkMail
func (a *App) pollMail(ctx context.Context, client email.MailService, handler *email.AttachmentHandler, q *queryFlags, mf *mailFlags) error {
	interval := time.Duration(a.Config.Email.CheckInterval)
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	cronSpec := fmt.Sprintf("@every %s", interval)

	var jobs cronJobs
	c := cron.New()
	err := c.AddFunc(cronSpec, jobs.wrap(func() {
		a.Logger.Info(fmt.Sprintf("开始定时检查(间隔: %v)...", cronSpec))
		if err := a.checkMail(client, handler, q, mf); err != nil {
			a.Logger.Error("检查处理邮件失败: " + err.Error())
		}
	}))
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}
	c.Start()
	defer jobs.stop(c)

	a.Logger.Info(fmt.Sprintf("邮件监控服务已启动(检查间隔: %v)", interval))
	<-ctx.Done()
	return nil
}

// checkMail 取最新目标邮件, 保存附件, 替换数据集并生成报告
func (a *App) checkMail(client email.MailService, handler *email.AttachmentHandler, q *queryFlags, mf *mailFlags) error {
	msg, err := email.CheckAndProcessEmails(client, mf.keyword, a.Logger)
	if err != nil {
		return err
	}
	if msg == nil || handler.IsProcessed(msg.UID) {
		return nil
	}

	if _, err := handler.Save(msg); err != nil {
		a.Logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", msg.UID, err))
	}

	loader := &email.DataLoader{Store: a.Store, Read: a.readOptions(), Options: a.buildOptions()}
	ds, err := loader.Load(msg)
	if err != nil {
		return err
	}

	report := a.analyze(q)
	path, err := emit(nil, FormatXLSX, "", a.Config.OutputDir, "report", report.Tables())
	if err != nil {
		return err
	}
	a.Logger.Info(fmt.Sprintf("报告已保存到: %s (%s)", path, ds.Source()))

	if !mf.send {
		return nil
	}
	if err := email.SendReport(a.Config, reportBody(report), path); err != nil {
		return err
	}
	a.Logger.Info("报告邮件发送成功")
	return nil
}

// reportBody 邮件正文, 每个区域一行: 平均值 峰值 超限比例 状态
func reportBody(report processor.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d zones, %d hours.\n\n", report.Parameter, len(report.Zones), report.TotalHours)
	// 两张表的行都按 report.Results 的顺序排列
	for i, row := range report.AvgTable.Maps() {
		fmt.Fprintf(&sb, "%s  avg %s  peak %s  outside %s%%  %s\n",
			row[processor.ColZone], row[processor.ColAverage], row[processor.ColPeak],
			report.FailTable.Cell(i, processor.ColPercentage), row[processor.ColStatus])
	}
	if len(report.Diagnostics) > 0 {
		sb.WriteString("\n" + strings.Join(report.Diagnostics, "\n") + "\n")
	}
	return sb.String()
}
