// daylight.go
package processor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"BandAnalyzer/src/utils"
)

const (
	ColSDAPercent = "sDA Area in Range (%)"
	ColUDIPercent = "UDI Area in Range (%)"
	ColSDAArea    = "sDA Area in Range (m2)"
	ColUDIArea    = "UDI Area in Range (m2)"
	ColASEArea    = "ASE Area in Range (m2)"
	ColFloorArea  = "Floor Area (m2)"
	ColTotalArea  = "Total Area (m²)"
	ColSDAStatus  = "sDA Pass/Fail"
	ColUDIStatus  = "UDI Pass/Fail"
	ColMetric     = "Metric"
	ColPercent    = "Percentage"
	DaylightTotal = "TOTAL"

	DefaultDaylightThreshold = 50.0
)

var ErrMissingColumn = errors.New("missing column")

// DaylightOptions 采光汇总参数
type DaylightOptions struct {
	SDAThreshold float64 // 百分比, 大于等于即 Pass
	UDIThreshold float64
	ZoneFilter   ZoneFilter
	Zones        []string
}

// DaylightReport 区域明细表和 sDA/UDI/ASE 百分比表
type DaylightReport struct {
	Zones       Table
	Metrics     Table
	Diagnostics []string
}

func (r DaylightReport) Tables() []Table { return []Table{r.Zones, r.Metrics} }

// SummarizeDaylight 汇总每个区域的采光指标
// rows 第一行为表头, 必须包含 Zone 列
func SummarizeDaylight(rows [][]string, opts DaylightOptions) (DaylightReport, error) {
	var report DaylightReport
	if len(rows) < 2 {
		return report, fmt.Errorf("daylight table: no data rows")
	}
	df := dataframe.LoadRecords(rows, dataframe.DetectTypes(true))
	if df.Err != nil {
		return report, fmt.Errorf("daylight table: %w", df.Err)
	}
	names := df.Names()
	if !utils.HasColumn(df, ColZone) {
		return report, fmt.Errorf("daylight table: %w %q", ErrMissingColumn, ColZone)
	}

	// 1. 区域选择和子串过滤
	allZones := df.Col(ColZone).Records()
	zones := SelectZones(FilterZones(distinct(allZones), opts.ZoneFilter), opts.Zones)
	keep := make(map[string]bool, len(zones))
	for _, z := range zones {
		keep[z] = true
	}
	df = df.Filter(dataframe.F{
		Colname:    ColZone,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return keep[strings.TrimSpace(el.String())] },
	})
	if df.Err != nil {
		return report, fmt.Errorf("daylight filter: %w", df.Err)
	}

	// 2. 数值列
	var numeric []string
	values := make(map[string][]float64)
	for _, n := range names {
		t := df.Col(n).Type()
		if n != ColZone && (t == series.Int || t == series.Float) {
			numeric = append(numeric, n)
			values[n] = floatsOf(df, n)
		}
	}

	// 3. Pass/Fail 列
	columns := append([]string(nil), names...)
	statusCols := []struct {
		source, name string
		threshold    float64
	}{
		{ColSDAPercent, ColSDAStatus, opts.SDAThreshold},
		{ColUDIPercent, ColUDIStatus, opts.UDIThreshold},
	}
	statuses := make([][]string, 0, len(statusCols))
	for _, sc := range statusCols {
		if !utils.Contains(numeric, sc.source) {
			report.Diagnostics = append(report.Diagnostics,
				fmt.Sprintf("%v %q, %s skipped", ErrMissingColumn, sc.source, sc.name))
			continue
		}
		vals := values[sc.source]
		col := make([]string, len(vals))
		for i, v := range vals {
			col[i] = StatusFail
			if !math.IsNaN(v) && v >= sc.threshold {
				col[i] = StatusPass
			}
		}
		columns = append(columns, sc.name)
		statuses = append(statuses, col)
	}

	// 4. 明细行 + 合计行
	records := df.Records()[1:]
	sums := make(map[string]float64, len(numeric))
	for _, n := range numeric {
		for _, v := range values[n] {
			if !math.IsNaN(v) {
				sums[n] += v
			}
		}
	}
	out := make([][]string, 0, len(records)+1)
	for i, rec := range records {
		row := make([]string, 0, len(columns))
		for c, n := range names {
			cell := rec[c]
			if cell == "NaN" {
				cell = ""
			}
			if utils.Contains(numeric, n) && cell != "" {
				cell = formatNumber(values[n][i])
			}
			row = append(row, cell)
		}
		for _, st := range statuses {
			row = append(row, st[i])
		}
		out = append(out, row)
	}
	total := make([]string, 0, len(columns))
	for _, n := range names {
		switch {
		case n == ColZone:
			total = append(total, DaylightTotal)
		case utils.Contains(numeric, n):
			total = append(total, formatRounded(sums[n]))
		default:
			total = append(total, "")
		}
	}
	for range statuses {
		total = append(total, "")
	}
	out = append(out, total)
	report.Zones = newTable("daylight", columns, nil, out)

	// 5. 面积百分比
	area := sums[ColFloorArea]
	if area == 0 {
		area = sums[ColTotalArea]
	}
	percent := func(col string) string {
		if area <= 0 {
			return "0"
		}
		return formatRounded(sums[col] / area * 100)
	}
	report.Metrics = newTable("daylight metrics", []string{ColMetric, ColPercent}, nil, [][]string{
		{"sDA%", percent(ColSDAArea)},
		{"UDI%", percent(ColUDIArea)},
		{"ASE%", percent(ColASEArea)},
	})
	return report, nil
}

func floatsOf(df dataframe.DataFrame, name string) []float64 {
	if df.Nrow() == 0 {
		return nil
	}
	return df.Col(name).Float()
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || v == "NaN" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
