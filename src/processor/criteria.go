// criteria.go
package processor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"BandAnalyzer/src/timeseries"
)

var ErrInvalidRange = errors.New("invalid range")

// IntRange 闭区间 [Lo, Hi], nil 表示不限制
type IntRange struct {
	Lo int
	Hi int
}

func (r *IntRange) active() bool {
	return r != nil && r.Lo <= r.Hi
}

func (r *IntRange) Contains(v int) bool {
	if !r.active() {
		return true
	}
	return v >= r.Lo && v <= r.Hi
}

func (r *IntRange) String() string {
	if r == nil {
		return "all"
	}
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}

// DateRange 闭区间日期范围, 多个范围取并集
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) startKey() string { return r.Start.Format(timeseries.DateLayout) }
func (r DateRange) endKey() string   { return r.End.Format(timeseries.DateLayout) }

// containsKey 按 2006-01-02 字符串比较, 与数据集 Date 列一致
func (r DateRange) containsKey(date string) bool {
	return date >= r.startKey() && date <= r.endKey()
}

func (r DateRange) String() string {
	return r.startKey() + ":" + r.endKey()
}

// Criteria 一次查询的行过滤条件
type Criteria struct {
	Days  *IntRange   // 星期范围, 0 = 周一
	Dates []DateRange // 日期范围并集, 为空不限制
	Hours *IntRange   // 作用于夏令时调整后的小时
}

// ParseIntRange 解析 "8-18" 或 "8", 格式错误返回 nil(不限制)
func ParseIntRange(s string) *IntRange {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	l, err1 := strconv.Atoi(strings.TrimSpace(lo))
	h, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || l > h {
		return nil
	}
	return &IntRange{Lo: l, Hi: h}
}

var dayNames = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// ParseDayRange 解析 "Mon-Fri" 或 "0-4"
func ParseDayRange(s string) *IntRange {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	l, ok1 := parseDay(lo)
	h, ok2 := parseDay(hi)
	if !ok1 || !ok2 || l > h {
		return nil
	}
	return &IntRange{Lo: l, Hi: h}
}

func parseDay(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0 && n <= 6
	}
	if len(s) < 3 {
		return 0, false
	}
	for i, name := range dayNames {
		if strings.HasPrefix(s, name) {
			return i, true
		}
	}
	return 0, false
}

// ParseDateRange 解析 "start:end", 日期可写成 2006-01-02 或 01-02(使用参考年份)
func ParseDateRange(s string, year int) (DateRange, error) {
	start, end, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return DateRange{}, fmt.Errorf("%w: %q missing ':'", ErrInvalidRange, s)
	}
	st, err := parseDate(start, year)
	if err != nil {
		return DateRange{}, err
	}
	en, err := parseDate(end, year)
	if err != nil {
		return DateRange{}, err
	}
	if en.Before(st) {
		return DateRange{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidRange, s)
	}
	return DateRange{Start: st, End: en}, nil
}

func parseDate(s string, year int) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(timeseries.DateLayout, s); err == nil {
		return t, nil
	}
	if year <= 0 {
		year = timeseries.DefaultReferenceYear
	}
	t, err := time.Parse(timeseries.DateLayout, fmt.Sprintf("%04d-%s", year, s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRange, s)
	}
	return t, nil
}

// ParseDateRanges 逐个解析日期范围, 错误的范围被跳过并返回诊断
func ParseDateRanges(specs []string, year int) ([]DateRange, []error) {
	var (
		ranges []DateRange
		errs   []error
	)
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		r, err := ParseDateRange(spec, year)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, errs
}
