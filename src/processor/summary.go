// summary.go
package processor

import (
	"math"
	"strconv"

	"BandAnalyzer/src/timeseries"
)

const (
	ColZone = "Zone"

	ColWithin     = "Hours Within Range"
	ColOutside    = "Hours Outside Range"
	ColAbove      = "Hours Above Threshold"
	ColBelow      = "Hours Below Threshold"
	ColPercentage = "Percentage Outside Range (%)"

	ColAverage = "Average Value"
	ColPeak    = "Peak Value"
	ColStatus  = "Status"

	TotalRowLabel = "Total"
	NotAvailable  = "N/A"
)

// ZoneResult 单个区域在当前窗口内的全部统计结果
type ZoneResult struct {
	Zone   string
	Column timeseries.Column

	Bands Histogram
	Rules []RuleResult

	TotalHours int
	Above      int
	Below      int
	Outside    int
	Within     int
	Percentage float64

	Stats  Stats
	Status string
}

// EvaluateZone 计算一个区域的分段、阈值和平均/峰值结果
// 参数:
//
//	zone: 区域名
//	col: 已解析的数据列
//	values: 窗口内取值, 缺失为 NaN
//	totalHours: 窗口内小时数
//	bands: 分段边界
//	rules: 阈值规则
func EvaluateZone(zone string, col timeseries.Column, values []float64, totalHours int, bands Bands, rules []Rule) ZoneResult {
	res := ZoneResult{
		Zone:       zone,
		Column:     col,
		Bands:      Classify(values, bands),
		Rules:      EvaluateHours(values, rules),
		TotalHours: totalHours,
	}

	// 1. 超出范围: 上下两个方向相加, 同时超上限和低于下限的小时计两次
	// 因此 Within 可能为负, Within + Outside 始终等于 totalHours
	res.Above, res.Below = OutsideHours(values, rules)
	res.Outside = res.Above + res.Below
	res.Within = totalHours - res.Outside
	if totalHours > 0 {
		res.Percentage = round2(float64(res.Outside) / float64(totalHours) * 100)
	}

	// 2. 平均值和峰值
	res.Stats = Summarize(values)
	res.Status = CompositeStatus(res.Stats, rules)
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

// uniqueColumns 同名规则列追加序号, 例如 "Fail > 25 (2)"
func uniqueColumns(names []string, used map[string]bool) []string {
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = name + " (" + strconv.Itoa(n) + ")"
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// BandTable 分段分布表: 每个区域一行, 每个分段一列, 每条小时规则一列状态, 最后附加合计行
func BandTable(results []ZoneResult, bands Bands, rules []Rule) Table {
	labels := bands.Labels()
	if len(labels) == 0 {
		return Table{Name: "bands"}
	}

	var hourRules []Rule
	var ruleNames []string
	for _, r := range rules {
		if r.IsHours() {
			hourRules = append(hourRules, r)
			ruleNames = append(ruleNames, r.Column())
		}
	}
	used := map[string]bool{ColZone: true}
	for _, l := range labels {
		used[l] = true
	}
	ruleNames = uniqueColumns(ruleNames, used)

	columns := append([]string{ColZone}, labels...)
	columns = append(columns, ruleNames...)
	intCols := make(map[string]bool, len(labels))
	for _, l := range labels {
		intCols[l] = true
	}

	totals := make([]int, len(labels))
	rows := make([][]string, 0, len(results)+1)
	for _, res := range results {
		row := []string{res.Zone}
		for i := range labels {
			n := 0
			if i < len(res.Bands.Counts) {
				n = res.Bands.Counts[i]
			}
			totals[i] += n
			row = append(row, strconv.Itoa(n))
		}
		for i := range hourRules {
			status := ""
			if i < len(res.Rules) {
				status = res.Rules[i].Status
			}
			row = append(row, status)
		}
		rows = append(rows, row)
	}

	total := []string{TotalRowLabel}
	for _, n := range totals {
		total = append(total, strconv.Itoa(n))
	}
	for range hourRules {
		total = append(total, "")
	}
	rows = append(rows, total)

	return newTable("bands", columns, intCols, rows)
}

// FailTable 超限汇总表
func FailTable(results []ZoneResult) Table {
	columns := []string{ColZone, ColWithin, ColOutside, ColAbove, ColBelow, ColPercentage}
	intCols := map[string]bool{ColWithin: true, ColOutside: true, ColAbove: true, ColBelow: true}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			res.Zone,
			strconv.Itoa(res.Within),
			strconv.Itoa(res.Outside),
			strconv.Itoa(res.Above),
			strconv.Itoa(res.Below),
			formatRounded(res.Percentage),
		})
	}
	return newTable("fails", columns, intCols, rows)
}

// AverageTable 平均值/峰值表, 窗口内全部缺失时显示 N/A
func AverageTable(results []ZoneResult) Table {
	columns := []string{ColZone, ColAverage, ColPeak, ColStatus}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		avg, peak := NotAvailable, NotAvailable
		if res.Stats.Available() {
			avg = formatRounded(res.Stats.Average)
			peak = formatRounded(res.Stats.Peak)
		}
		rows = append(rows, []string{res.Zone, avg, peak, res.Status})
	}
	return newTable("averages", columns, nil, rows)
}
