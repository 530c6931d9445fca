package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/datasource/file"
	"BandAnalyzer/src/processor"
	"BandAnalyzer/src/timeseries"
)

// queryFlags 分析条件, 留空的项取 dataconfig.json 中的默认值
type queryFlags struct {
	parameter       string
	zones           []string
	zoneFilter      string
	zoneMode        string
	bands           string
	bandPreset      string
	thresholds      string
	thresholdPreset string
	hours           string
	days            string
	dates           []string
}

func (q *queryFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&q.parameter, "parameter", "p", "", "Parameter to analyse, e.g. \"Air Temperature\"")
	f.StringSliceVar(&q.zones, "zones", nil, "Zones to include, all when empty")
	f.StringVar(&q.zoneFilter, "zone-filter", "", "Case-insensitive zone name substring")
	f.StringVar(&q.zoneMode, "zone-mode", "", "Zone filter mode: include or exclude")
	f.StringVar(&q.bands, "bands", "", "Comma separated band boundaries")
	f.StringVar(&q.bandPreset, "band-preset", "", "Named band preset")
	f.StringVar(&q.thresholds, "thresholds", "", "Threshold rules, e.g. \"25:80,below:18:10,avg:800\"")
	f.StringVar(&q.thresholdPreset, "threshold-preset", "", "Named threshold preset")
	f.StringVar(&q.hours, "hours", "", "Hour range applied to the DST adjusted hour, e.g. 8-18")
	f.StringVar(&q.days, "days", "", "Day of week range, e.g. Mon-Fri or 0-4")
	f.StringArrayVar(&q.dates, "dates", nil, "Date range start:end (YYYY-MM-DD or MM-DD), repeatable")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// request 合并命令行和预设, 无法使用的条件返回为诊断信息
func (q *queryFlags) request(presets *config.PresetConfig, year int) (processor.Request, []string) {
	var diags []string
	d := presets.Defaults

	req := processor.Request{
		Parameter: firstNonEmpty(q.parameter, d.Parameter),
		Zones:     q.zones,
		ZoneFilter: processor.ZoneFilter{
			Substring: firstNonEmpty(q.zoneFilter, d.ZoneFilter),
			Mode:      processor.ParseZoneMode(firstNonEmpty(q.zoneMode, d.ZoneMode)),
		},
	}

	// 分段: 显式列表 > 指定预设 > 默认 > 与参数同名的预设
	bands := q.bands
	if bands == "" && q.bandPreset != "" {
		v, ok := presets.GetBandPreset(q.bandPreset)
		if !ok {
			diags = append(diags, fmt.Sprintf("unknown band preset %q", q.bandPreset))
		}
		bands = v
	}
	if bands == "" {
		bands = d.Bands
	}
	if bands == "" {
		bands, _ = presets.GetBandPreset(req.Parameter)
	}
	req.Bands = bands

	thresholds := q.thresholds
	if thresholds == "" && q.thresholdPreset != "" {
		v, ok := presets.GetThresholdPreset(q.thresholdPreset)
		if !ok {
			diags = append(diags, fmt.Sprintf("unknown threshold preset %q", q.thresholdPreset))
		}
		thresholds = v
	}
	if thresholds == "" {
		thresholds = d.Thresholds
	}
	if thresholds == "" {
		thresholds, _ = presets.GetThresholdPreset(req.Parameter)
	}
	req.Thresholds = thresholds

	// 时间条件, 格式错误的项不限制
	hours := firstNonEmpty(q.hours, d.Hours)
	req.Criteria.Hours = processor.ParseIntRange(hours)
	if req.Criteria.Hours == nil && strings.TrimSpace(hours) != "" {
		diags = append(diags, fmt.Sprintf("ignoring malformed hour range %q", hours))
	}
	days := firstNonEmpty(q.days, d.Days)
	req.Criteria.Days = processor.ParseDayRange(days)
	if req.Criteria.Days == nil && strings.TrimSpace(days) != "" {
		diags = append(diags, fmt.Sprintf("ignoring malformed day range %q", days))
	}
	dates := q.dates
	if len(dates) == 0 {
		dates = d.Dates
	}
	ranges, errs := processor.ParseDateRanges(dates, year)
	req.Criteria.Dates = ranges
	for _, err := range errs {
		diags = append(diags, err.Error())
	}

	return req, diags
}

// loadDataset 读取导出文件并替换当前数据集
func (a *App) loadDataset(path string) (*timeseries.Dataset, error) {
	rows, err := file.ReadFile(path, a.readOptions())
	if err != nil {
		return nil, err
	}
	ds, err := a.Store.Load(rows, a.buildOptions(), path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.Logger.Info(fmt.Sprintf("加载 %s: %d 行, 丢弃 %d 行, %d 个区域",
		path, ds.Len(), ds.Dropped(), len(ds.Zones())))
	for _, d := range ds.Diagnostics() {
		a.Logger.Warning(d)
	}
	return ds, nil
}

func (a *App) readOptions() file.ReadOptions {
	return file.ReadOptions{Sheet: a.Config.SheetName, Encoding: a.Config.Ingest.Encoding}
}

func (a *App) buildOptions() timeseries.Options {
	return timeseries.Options{SkipRows: a.Config.Ingest.SkipRows, ReferenceYear: a.Config.Ingest.ReferenceYear}
}

// analyze 对当前数据集快照执行一次分析
func (a *App) analyze(q *queryFlags) processor.Report {
	req, diags := q.request(a.Presets, a.Config.Ingest.ReferenceYear)
	for _, d := range diags {
		a.Logger.Warning(d)
	}
	analyzer := &processor.Analyzer{Logger: a.Logger}
	report := analyzer.Run(a.Store.GetDataset(), req)
	report.Diagnostics = append(diags, report.Diagnostics...)
	return report
}
