// data.go
package processor

import (
	"fmt"
	"strings"
	"time"

	"BandAnalyzer/src/storage"
	"BandAnalyzer/src/timeseries"
)

// Request 一次分析请求
type Request struct {
	Parameter  string
	Zones      []string // 明确选择的区域, 为空表示全部
	ZoneFilter ZoneFilter
	Criteria   Criteria
	Bands      string // 逗号分隔的分段边界
	Thresholds string // 阈值规则字符串
}

// Report 一次分析的全部输出
type Report struct {
	Parameter   string
	Zones       []string
	TotalHours  int
	Bands       Bands
	Rules       []Rule
	Results     []ZoneResult
	BandTable   Table
	FailTable   Table
	AvgTable    Table
	Diagnostics []string
	Elapsed     time.Duration
}

// Tables 按输出顺序返回三张表
func (r Report) Tables() []Table {
	return []Table{r.BandTable, r.FailTable, r.AvgTable}
}

// Empty 没有可用区域
func (r Report) Empty() bool { return len(r.Results) == 0 }

// Analyzer 分析流水线: 区域 -> 过滤 -> 分段/阈值 -> 汇总
type Analyzer struct {
	Logger *storage.Logger // 可为空
}

func (a *Analyzer) warn(msg string) {
	if a != nil && a.Logger != nil {
		a.Logger.Warning(msg)
	}
}

// Run 对数据集快照执行一次完整计算, 局部错误记录为诊断信息而不返回
func (a *Analyzer) Run(ds *timeseries.Dataset, req Request) Report {
	start := time.Now()
	report := Report{Parameter: strings.TrimSpace(req.Parameter)}
	report.BandTable = Table{Name: "bands"}
	report.FailTable = FailTable(nil)
	report.AvgTable = AverageTable(nil)

	if ds == nil || report.Parameter == "" {
		report.Diagnostics = append(report.Diagnostics, "no dataset or parameter selected")
		return report
	}

	// 1. 区域列表
	zones := SelectZones(FilterZones(ds.Zones(), req.ZoneFilter), req.Zones)

	// 2. 行过滤
	view := Apply(ds, req.Criteria)
	report.TotalHours = view.Len()

	// 3. 分段和规则
	report.Bands = ParseBands(req.Bands)
	if len(report.Bands) == 0 && strings.TrimSpace(req.Bands) != "" {
		report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("no bands configured from %q", req.Bands))
	}
	rules, errs := ParseRules(req.Thresholds)
	report.Rules = rules
	for _, err := range errs {
		report.Diagnostics = append(report.Diagnostics, err.Error())
	}

	// 4. 逐个区域计算, 找不到列的区域跳过
	for _, zone := range zones {
		col, err := ds.Resolve(zone, report.Parameter)
		if err != nil {
			report.Diagnostics = append(report.Diagnostics, err.Error())
			continue
		}
		res := EvaluateZone(zone, col, view.Values(col), view.Len(), report.Bands, rules)
		report.Results = append(report.Results, res)
		report.Zones = append(report.Zones, zone)
	}

	// 5. 汇总表
	report.BandTable = BandTable(report.Results, report.Bands, rules)
	report.FailTable = FailTable(report.Results)
	report.AvgTable = AverageTable(report.Results)

	for _, d := range report.Diagnostics {
		a.warn(d)
	}
	report.Elapsed = time.Since(start)
	return report
}
