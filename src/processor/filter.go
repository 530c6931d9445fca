// filter.go
package processor

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"BandAnalyzer/src/timeseries"
)

const ColAdjustedHour = "AdjustedHour"

// View 过滤后的只读视图, 不影响原数据集
type View struct {
	frame dataframe.DataFrame
}

// Len 窗口内的小时数(行数)
func (v View) Len() int { return v.frame.Nrow() }

func (v View) Frame() dataframe.DataFrame { return v.frame }

// Values 返回某列在窗口内的取值, 缺失值为 NaN
func (v View) Values(col timeseries.Column) []float64 {
	if v.frame.Nrow() == 0 {
		return nil
	}
	return v.frame.Col(col.Name).Float()
}

// AdjustedHour 夏令时小时修正: 10月到3月减一小时, 4月到9月不变
func AdjustedHour(month, hour int) int {
	if month < 4 || month > 9 {
		return hour - 1
	}
	return hour
}

// Apply 按顺序执行: 星期 -> 夏令时修正 -> 日期并集 -> 小时
// 参数:
//
//	ds: 数据集快照
//	c: 过滤条件
//
// 返回值:
//
//	View: 过滤后的视图
func Apply(ds *timeseries.Dataset, c Criteria) View {
	df := ds.Frame().Copy()

	// 1. 星期范围
	if c.Days.active() {
		df = narrow(df, dataframe.And,
			dataframe.F{Colname: timeseries.ColDayOfWeek, Comparator: series.GreaterEq, Comparando: c.Days.Lo},
			dataframe.F{Colname: timeseries.ColDayOfWeek, Comparator: series.LessEq, Comparando: c.Days.Hi},
		)
	}

	// 2. 夏令时修正后的小时列
	df = df.Mutate(adjustedHours(df))

	// 3. 日期范围并集
	if len(c.Dates) > 0 {
		ranges := c.Dates
		df = narrow(df, dataframe.Or, dataframe.F{
			Colname:    timeseries.ColDate,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				date := el.String()
				for _, r := range ranges {
					if r.containsKey(date) {
						return true
					}
				}
				return false
			},
		})
	}

	// 4. 调整后的小时范围
	if c.Hours.active() {
		df = narrow(df, dataframe.And,
			dataframe.F{Colname: ColAdjustedHour, Comparator: series.GreaterEq, Comparando: c.Hours.Lo},
			dataframe.F{Colname: ColAdjustedHour, Comparator: series.LessEq, Comparando: c.Hours.Hi},
		)
	}

	return View{frame: df}
}

func narrow(df dataframe.DataFrame, agg dataframe.Aggregation, filters ...dataframe.F) dataframe.DataFrame {
	if df.Nrow() == 0 {
		return df
	}
	return df.FilterAggregation(agg, filters...)
}

func adjustedHours(df dataframe.DataFrame) series.Series {
	n := df.Nrow()
	adjusted := make([]int, n)
	if n > 0 {
		months, _ := df.Col(timeseries.ColMonth).Int()
		hours, _ := df.Col(timeseries.ColHour).Int()
		for i := range adjusted {
			adjusted[i] = AdjustedHour(months[i], hours[i])
		}
	}
	return series.New(adjusted, series.Int, ColAdjustedHour)
}

/******************** 区域过滤 ********************/

type ZoneMode string

const (
	ZoneInclude ZoneMode = "include"
	ZoneExclude ZoneMode = "exclude"
)

// ParseZoneMode 未知取值按 exclude 处理
func ParseZoneMode(s string) ZoneMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ZoneInclude)) {
		return ZoneInclude
	}
	return ZoneExclude
}

// ZoneFilter 区域名子串过滤, 不区分大小写
type ZoneFilter struct {
	Substring string
	Mode      ZoneMode
}

// FilterZones 按子串包含或排除区域, 子串为空时原样返回
func FilterZones(zones []string, zf ZoneFilter) []string {
	needle := strings.ToLower(strings.TrimSpace(zf.Substring))
	if needle == "" {
		return append([]string(nil), zones...)
	}
	include := zf.Mode == ZoneInclude

	out := make([]string, 0, len(zones))
	for _, z := range zones {
		if strings.Contains(strings.ToLower(z), needle) == include {
			out = append(out, z)
		}
	}
	return out
}

// SelectZones 保留仍然可用的已选区域, 顺序以选择为准; 未选择时返回全部
func SelectZones(available, selected []string) []string {
	if len(selected) == 0 {
		return append([]string(nil), available...)
	}
	known := make(map[string]bool, len(available))
	for _, z := range available {
		known[z] = true
	}
	out := make([]string, 0, len(selected))
	for _, z := range selected {
		z = strings.TrimSpace(z)
		if known[z] {
			out = append(out, z)
			delete(known, z)
		}
	}
	return out
}
