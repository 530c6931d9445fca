package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/datasource/email"
	"BandAnalyzer/src/storage"
	"BandAnalyzer/src/timeseries"
)

const exportCSV = "Exported zone data\n" +
	"Site,HQ\n" +
	",CO2,CO2,Air Temperature\n" +
	",Office,Lab,Office\n" +
	" 01/05 Jan 05 02:00 PM,650,900,21\n" +
	" 01/05 Jan 05 03:00 PM,700,950,22\n"

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportCSV), 0644))
	return path
}

// runCommand 在临时目录中运行一次命令行
func runCommand(t *testing.T, dir string, args ...string) (*App, string, string, error) {
	t.Helper()
	app := NewApp()
	root := RootCommand(app)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	base := []string{
		"--config-dir", filepath.Join(dir, "config"),
		"--log", filepath.Join(dir, "logs", "app.log"),
		"--output-dir", filepath.Join(dir, "reports"),
	}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return app, stdout.String(), stderr.String(), err
}

func newTestApp(t *testing.T, dir string) *App {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	cfg := config.DefaultConfig()
	cfg.OutputDir = filepath.Join(dir, "reports")
	cfg.DataDir = filepath.Join(dir, "data")
	return &App{
		Config:  cfg,
		Presets: config.DefaultPresets(),
		Logger:  logger,
		Store:   &timeseries.DatasetWrapper{},
		viper:   viper.New(),
	}
}

func TestQueryRequestUsesPresets(t *testing.T) {
	presets := config.DefaultPresets()
	presets.Defaults.Parameter = "DQLS CO2"
	presets.Defaults.Dates = []string{"01-01:01-31", "bad"}

	q := &queryFlags{}
	req, diags := q.request(presets, 1900)
	assert.Equal(t, "DQLS CO2", req.Parameter)
	assert.Equal(t, "600,800,1000,2000", req.Bands)
	assert.Equal(t, "avg:800,peak:2000", req.Thresholds)
	require.NotNil(t, req.Criteria.Hours)
	assert.Equal(t, 23, req.Criteria.Hours.Hi)
	require.Len(t, req.Criteria.Dates, 1)
	require.Len(t, diags, 1)

	q = &queryFlags{
		parameter:       "PMV",
		bands:           "0",
		thresholdPreset: "nope",
		hours:           "late",
		days:            "Mon-Fri",
		dates:           []string{"1900-02-01:1900-02-02"},
	}
	req, diags = q.request(presets, 1900)
	assert.Equal(t, "0", req.Bands)
	assert.Equal(t, "above:1:20,below:-1:20", req.Thresholds)
	assert.Nil(t, req.Criteria.Hours)
	assert.Equal(t, 4, req.Criteria.Days.Hi)
	assert.Len(t, req.Criteria.Dates, 1)
	assert.Len(t, diags, 2)
}

func TestReportCommandText(t *testing.T) {
	dir := t.TempDir()
	export := writeExport(t, dir)

	_, out, _, err := runCommand(t, dir, "report", export, "-p", "CO2", "--bands", "800", "--thresholds", "avg:800")
	require.NoError(t, err)
	assert.Contains(t, out, "== bands ==")
	assert.Contains(t, out, "== fails ==")
	assert.Contains(t, out, "== averages ==")
	assert.Contains(t, out, "Below 800")
	assert.Regexp(t, `Lab\s+0\s+2`, out)
	assert.Regexp(t, `Lab\s+925\s+950\s+Fail \(Avg Exceeds 800\)`, out)
}

func TestReportCommandFormats(t *testing.T) {
	dir := t.TempDir()
	export := writeExport(t, dir)

	_, out, _, err := runCommand(t, dir, "report", export, "-p", "CO2", "--bands", "800", "-f", "tsv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Zone\tBelow 800\tAbove 800\nOffice\t2\t0\nLab\t0\t2\nTotal\t2\t2\n"))

	xlsxPath := filepath.Join(dir, "out", "report.xlsx")
	_, out, _, err = runCommand(t, dir, "report", export, "-p", "CO2", "--bands", "800", "-f", "xlsx", "-o", xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, out, xlsxPath)

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"bands", "fails", "averages"}, f.GetSheetList())

	_, _, _, err = runCommand(t, dir, "report", export, "-p", "CO2", "-f", "yaml")
	assert.Error(t, err)
}

func TestReportCommandWarnsAboutUnknownParameter(t *testing.T) {
	dir := t.TempDir()
	export := writeExport(t, dir)

	_, _, stderr, err := runCommand(t, dir, "report", export, "-p", "Humidity", "--bands", "50")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")
	assert.Contains(t, stderr, "Humidity")
}

func TestReportCommandMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, _, _, err := runCommand(t, dir, "report", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	export := writeExport(t, dir)

	_, out, _, err := runCommand(t, dir, "inspect", export)
	require.NoError(t, err)
	assert.Contains(t, out, "rows:       2")
	assert.Contains(t, out, "zones:      Office, Lab")
	assert.Contains(t, out, "parameters: CO2, Air Temperature")
	assert.Contains(t, out, "dates:      1900-01-05 .. 1900-01-05")
}

func TestPresetsCommandAndOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "dataconfig.json"),
		[]byte(`{"bands": {"Lux": "100,300"}}`), 0644))
	t.Setenv("BANDS_SHEET", "Data")

	app, out, _, err := runCommand(t, dir, "--skip-rows", "5", "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "DQLS CO2")
	assert.Regexp(t, `Lux\s+100,300`, out)

	assert.Equal(t, 5, app.Config.Ingest.SkipRows)
	assert.Equal(t, "Data", app.Config.SheetName)
	assert.Equal(t, filepath.Join(dir, "reports"), app.Config.OutputDir)
	assert.Equal(t, 1900, app.Config.Ingest.ReferenceYear)
}

func TestDaylightCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daylight.csv")
	data := "Zone,sDA Area in Range (%),UDI Area in Range (%),sDA Area in Range (m2),UDI Area in Range (m2),ASE Area in Range (m2),Floor Area (m2)\n" +
		"Office,60,40,60,40,5,100\n" +
		"Lab,30,70,15,35,0,50\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, out, _, err := runCommand(t, dir, "daylight", path, "-f", "tsv")
	require.NoError(t, err)
	assert.Contains(t, out, "Office\t60\t40\t60\t40\t5\t100\tPass\tFail")
	assert.Contains(t, out, "sDA%\t50")
}

func TestScheduledReport(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir)
	q := &queryFlags{parameter: "CO2", bands: "800"}
	out := &outputFlags{format: FormatCSV}

	// 没有数据时跳过
	path, err := app.scheduledReport(context.Background(), q, out)
	require.NoError(t, err)
	assert.Empty(t, path)

	app.Config.Ingest.SkipRows = 2
	_, err = app.loadDataset(writeExport(t, dir))
	require.NoError(t, err)

	path, err = app.scheduledReport(context.Background(), q, out)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Zone,Below 800,Above 800\nOffice,2,0\n"))
}

type fakeMailbox struct {
	emails []*email.Email
}

func (f *fakeMailbox) Connect() error { return nil }
func (f *fakeMailbox) Disconnect()    {}
func (f *fakeMailbox) FetchUnreadEmails() ([]*email.Email, error) {
	return f.emails, nil
}

func TestCheckMail(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir)
	msg := &email.Email{
		UID:         9,
		Subject:     "Zone export",
		Date:        time.Now(),
		Attachments: []*email.Attachment{{Filename: "export.csv", Content: []byte(exportCSV)}},
	}
	handler := email.NewAttachmentHandler("export", app.Config.DataDir, app.Logger)
	mf := &mailFlags{keyword: "export"}

	require.NoError(t, app.checkMail(&fakeMailbox{emails: []*email.Email{msg}}, handler, &queryFlags{parameter: "CO2", bands: "800"}, mf))
	assert.True(t, handler.IsProcessed(9))
	assert.FileExists(t, filepath.Join(app.Config.DataDir, "export.csv"))
	assert.Equal(t, "mail:export.csv", app.Store.GetDataset().Source())

	reports, err := filepath.Glob(filepath.Join(app.Config.OutputDir, "report-*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	// 同一封邮件不会重复处理
	require.NoError(t, app.checkMail(&fakeMailbox{emails: []*email.Email{msg}}, handler, &queryFlags{parameter: "CO2"}, mf))
	reports, _ = filepath.Glob(filepath.Join(app.Config.OutputDir, "report-*.xlsx"))
	assert.Len(t, reports, 1)
}

func TestCronJobsStopWaitsForRunningJob(t *testing.T) {
	var (
		jobs     cronJobs
		runs     int32
		finished int32
	)
	started := make(chan struct{}, 1)
	job := jobs.wrap(func() {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		time.Sleep(150 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	})

	c := cron.New()
	c.Start()
	go job()
	<-started

	jobs.stop(c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))

	// 停止之后不再执行
	job()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestEmitReportsWriteErrors(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	dir := t.TempDir()
	app := newTestApp(t, dir)
	_, err := app.loadDataset(writeExport(t, dir))
	require.NoError(t, err)
	report := app.analyze(&queryFlags{parameter: "CO2", bands: "800"})

	for _, format := range []string{FormatCSV, FormatTSV, FormatText} {
		path, err := emit(nil, format, "/dev/full", dir, "report", report.Tables())
		assert.Error(t, err, format)
		assert.Empty(t, path, format)
	}

	path, err := emit(nil, FormatCSV, filepath.Join(dir, "out", "report.csv"), dir, "report", report.Tables())
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestReportBody(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir)
	_, err := app.loadDataset(writeExport(t, dir))
	require.NoError(t, err)

	report := app.analyze(&queryFlags{parameter: "CO2", bands: "800", thresholds: "avg:800,above:800:1"})
	body := reportBody(report)
	assert.True(t, strings.HasPrefix(body, "CO2: 2 zones, 2 hours.\n\n"))
	assert.Contains(t, body, "Office  avg 675  peak 700  outside 0%  Pass\n")
	assert.Contains(t, body, "Lab  avg 925  peak 950  outside 100%  Fail (Avg Exceeds 800)\n")

	report = app.analyze(&queryFlags{parameter: "Humidity"})
	assert.Empty(t, report.Zones)
	assert.Contains(t, reportBody(report), "Humidity")
}
