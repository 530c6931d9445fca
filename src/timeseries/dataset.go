// dataset.go
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

/******************** 常量定义 ********************/
const (
	ColDatetime  = "Datetime"  // 完整时间戳(含参考年份)
	ColDate      = "Date"      // 日历日期 2006-01-02
	ColMonth     = "Month"     // 月份 1-12
	ColHour      = "Hour"      // 原始时钟小时 0-23
	ColDayOfWeek = "DayOfWeek" // 星期索引, 0 = 周一

	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04"

	// 去掉前缀后的时间戳格式, 例如 "Jan 05 02:00 PM"
	TimestampLayout = "Jan 2 3:04 PM"
	TimestampPrefix = 7

	DefaultReferenceYear = 1900
)

var (
	ErrTableShape      = errors.New("invalid table shape")
	ErrColumnNotFound  = errors.New("column not found")
	ErrAmbiguousColumn = errors.New("ambiguous column")
)

// Options 控制原始表格的解析方式
type Options struct {
	SkipRows      int // 表头之前需要丢弃的行数
	ReferenceYear int // 时间戳不带年份, 统一补上的年份
}

func (o Options) year() int {
	if o.ReferenceYear <= 0 {
		return DefaultReferenceYear
	}
	return o.ReferenceYear
}

// Column 一个 (区域, 参数) 数据列
type Column struct {
	Zone      string
	Parameter string
	Name      string // 在 DataFrame 中的列名: "区域 参数"
}

type columnKey struct {
	zone, parameter string
}

// Dataset 一次导入得到的不可变时间序列表
type Dataset struct {
	frame       dataframe.DataFrame
	columns     []Column
	index       map[columnKey]int
	zones       []string
	parameters  []string
	dropped     int
	diagnostics []string
	source      string
	loadedAt    time.Time
}

// Empty 返回没有任何行和数据列的数据集
func Empty() *Dataset {
	return &Dataset{
		frame: buildFrame(nil, nil, nil),
		index: make(map[columnKey]int),
	}
}

// Build 从已解码的表格构建数据集
// 参数:
//
//	rows: 原始行, 表头两行依次为参数名和区域名, 第一列保留给时间戳
//	opts: 解析选项
//
// 返回值:
//
//	*Dataset: 构建完成的数据集
//	error: 只有表格结构错误才会返回
func Build(rows [][]string, opts Options) (*Dataset, error) {
	if opts.SkipRows < 0 {
		return nil, fmt.Errorf("%w: negative skip rows %d", ErrTableShape, opts.SkipRows)
	}
	if len(rows) < opts.SkipRows+2 {
		return nil, fmt.Errorf("%w: need 2 header rows after skipping %d, got %d rows",
			ErrTableShape, opts.SkipRows, len(rows))
	}
	rows = rows[opts.SkipRows:]
	paramRow, zoneRow := rows[0], rows[1]

	width := len(paramRow)
	if len(zoneRow) > width {
		width = len(zoneRow)
	}
	if width < 2 {
		return nil, fmt.Errorf("%w: header has no data columns", ErrTableShape)
	}

	ds := &Dataset{index: make(map[columnKey]int)}

	// 1. 解析表头, 建立 (区域, 参数) 索引
	positions := make([]int, 0, width-1)
	seenNames := make(map[string]bool)
	seenZones := make(map[string]bool)
	seenParams := make(map[string]bool)
	for i := 1; i < width; i++ {
		param := strings.TrimSpace(cellAt(paramRow, i))
		zone := strings.TrimSpace(cellAt(zoneRow, i))
		if zone == "" && param == "" {
			continue
		}
		name := strings.TrimSpace(zone + " " + param)
		key := columnKey{zone: zone, parameter: param}
		if _, ok := ds.index[key]; ok || seenNames[name] || isReserved(name) {
			ds.diagnostics = append(ds.diagnostics,
				fmt.Sprintf("duplicate column %q at position %d ignored", name, i))
			continue
		}
		ds.index[key] = len(ds.columns)
		ds.columns = append(ds.columns, Column{Zone: zone, Parameter: param, Name: name})
		positions = append(positions, i)
		seenNames[name] = true

		if zone != "" && !seenZones[zone] {
			seenZones[zone] = true
			ds.zones = append(ds.zones, zone)
		}
		if param != "" && !seenParams[param] {
			seenParams[param] = true
			ds.parameters = append(ds.parameters, param)
		}
	}

	// 2. 解析数据行, 时间戳无法解析的行直接丢弃
	year := opts.year()
	var stamps []time.Time
	values := make([][]float64, len(ds.columns))
	for _, row := range rows[2:] {
		ts, ok := ParseTimestamp(cellAt(row, 0), year)
		if !ok {
			ds.dropped++
			continue
		}
		stamps = append(stamps, ts)
		for c, pos := range positions {
			values[c] = append(values[c], parseValue(cellAt(row, pos)))
		}
	}

	// 3. 组装 DataFrame
	ds.frame = buildFrame(stamps, ds.columns, values)
	if ds.frame.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableShape, ds.frame.Err)
	}
	return ds, nil
}

// ParseTimestamp 解析导出工具的时间戳字段
// 去掉固定长度的前缀后按 "Mon DD hh:mm AM" 解析, 年份使用 year
func ParseTimestamp(field string, year int) (time.Time, bool) {
	if len(field) <= TimestampPrefix {
		return time.Time{}, false
	}
	rest := strings.Join(strings.Fields(field[TimestampPrefix:]), " ")
	t, err := time.Parse(TimestampLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	ts := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	// 参考年份中不存在的日期(例如 1900-02-29)视为解析失败
	if ts.Month() != t.Month() || ts.Day() != t.Day() {
		return time.Time{}, false
	}
	return ts, true
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isReserved(name string) bool {
	switch name {
	case ColDatetime, ColDate, ColMonth, ColHour, ColDayOfWeek:
		return true
	}
	return false
}

func buildFrame(stamps []time.Time, columns []Column, values [][]float64) dataframe.DataFrame {
	n := len(stamps)
	datetimes := make([]string, n)
	dates := make([]string, n)
	months := make([]int, n)
	hours := make([]int, n)
	days := make([]int, n)
	for i, ts := range stamps {
		datetimes[i] = ts.Format(DatetimeLayout)
		dates[i] = ts.Format(DateLayout)
		months[i] = int(ts.Month())
		hours[i] = ts.Hour()
		days[i] = (int(ts.Weekday()) + 6) % 7
	}

	list := []series.Series{
		series.New(datetimes, series.String, ColDatetime),
		series.New(dates, series.String, ColDate),
		series.New(months, series.Int, ColMonth),
		series.New(hours, series.Int, ColHour),
		series.New(days, series.Int, ColDayOfWeek),
	}
	for c, col := range columns {
		vals := values[c]
		if vals == nil {
			vals = []float64{}
		}
		list = append(list, series.New(vals, series.Float, col.Name))
	}
	return dataframe.New(list...)
}

/******************** 访问方法 ********************/

// Frame 返回底层 DataFrame, 调用方不得修改
func (d *Dataset) Frame() dataframe.DataFrame { return d.frame }

// Len 数据行数
func (d *Dataset) Len() int { return d.frame.Nrow() }

// Dropped 因时间戳无法解析而丢弃的行数
func (d *Dataset) Dropped() int { return d.dropped }

func (d *Dataset) Diagnostics() []string { return append([]string(nil), d.diagnostics...) }

func (d *Dataset) Columns() []Column { return append([]Column(nil), d.columns...) }

// Zones 按首次出现顺序返回区域名
func (d *Dataset) Zones() []string { return append([]string(nil), d.zones...) }

// Parameters 按首次出现顺序返回参数名
func (d *Dataset) Parameters() []string { return append([]string(nil), d.parameters...) }

func (d *Dataset) Source() string      { return d.source }
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Resolve 查找 (区域, 参数) 对应的列
// 优先精确匹配索引, 否则按子串包含查找; 多个候选视为数据质量错误
func (d *Dataset) Resolve(zone, parameter string) (Column, error) {
	if i, ok := d.index[columnKey{zone: zone, parameter: parameter}]; ok {
		return d.columns[i], nil
	}

	var matches []Column
	for _, col := range d.columns {
		if strings.Contains(col.Name, zone) && strings.Contains(col.Name, parameter) {
			matches = append(matches, col)
		}
	}
	switch len(matches) {
	case 0:
		return Column{}, fmt.Errorf("%w: zone %q parameter %q", ErrColumnNotFound, zone, parameter)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return Column{}, fmt.Errorf("%w: zone %q parameter %q matches %s",
			ErrAmbiguousColumn, zone, parameter, strings.Join(names, ", "))
	}
}
