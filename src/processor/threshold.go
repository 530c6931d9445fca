// threshold.go
package processor

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	StatusPass = "Pass"
	StatusFail = "Fail"
)

var ErrInvalidRule = errors.New("invalid threshold entry")

var (
	numberPattern = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)
	hoursPattern  = regexp.MustCompile(`^\d+$`)
)

// RuleKind 规则类型
type RuleKind int

const (
	AboveHoursLimit RuleKind = iota // 超过 Value 的小时数不得多于 Hours
	BelowHoursLimit                 // 低于 Value 的小时数不得多于 Hours
	AverageLimit                    // 平均值不得超过 Value
	PeakLimit                       // 峰值不得超过 Value
)

func (k RuleKind) String() string {
	switch k {
	case AboveHoursLimit:
		return "above"
	case BelowHoursLimit:
		return "below"
	case AverageLimit:
		return "avg"
	case PeakLimit:
		return "peak"
	default:
		return "unknown"
	}
}

// Rule 一条阈值规则
type Rule struct {
	Kind  RuleKind
	Value float64
	Hours int
}

// IsHours 是否为按小时计数的规则
func (r Rule) IsHours() bool {
	return r.Kind == AboveHoursLimit || r.Kind == BelowHoursLimit
}

// Column 明细表中的列名, 例如 "Fail > 25"
func (r Rule) Column() string {
	switch r.Kind {
	case BelowHoursLimit:
		return "Fail < " + formatNumber(r.Value)
	case AverageLimit:
		return "Avg > " + formatNumber(r.Value)
	case PeakLimit:
		return "Peak > " + formatNumber(r.Value)
	default:
		return "Fail > " + formatNumber(r.Value)
	}
}

func (r Rule) String() string {
	if r.IsHours() {
		return fmt.Sprintf("%s:%s:%d", r.Kind, formatNumber(r.Value), r.Hours)
	}
	return fmt.Sprintf("%s:%s", r.Kind, formatNumber(r.Value))
}

// ParseRules 解析阈值规则字符串
// 支持: "value:hours", "above:value:hours", "below:value:hours", "avg:value", "peak:value"
// 单个条目格式错误只跳过该条目, 并在 errs 中返回原因
func ParseRules(s string) (rules []Rule, errs []error) {
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		r, err := parseRule(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

func parseRule(entry string) (Rule, error) {
	parts := strings.Split(entry, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 2:
		switch strings.ToLower(parts[0]) {
		case "avg", "average":
			return statRule(AverageLimit, parts[1], entry)
		case "peak", "max":
			return statRule(PeakLimit, parts[1], entry)
		}
		return hoursRule(AboveHoursLimit, parts[0], parts[1], entry)
	case 3:
		switch strings.ToLower(parts[0]) {
		case "above":
			return hoursRule(AboveHoursLimit, parts[1], parts[2], entry)
		case "below":
			return hoursRule(BelowHoursLimit, parts[1], parts[2], entry)
		}
		return Rule{}, fmt.Errorf("%w %q: unknown direction %q", ErrInvalidRule, entry, parts[0])
	default:
		return Rule{}, fmt.Errorf("%w %q: expected 2 or 3 fields", ErrInvalidRule, entry)
	}
}

func parseNumber(s, entry string) (float64, error) {
	if !numberPattern.MatchString(s) {
		return 0, fmt.Errorf("%w %q: bad value %q", ErrInvalidRule, entry, s)
	}
	return strconv.ParseFloat(s, 64)
}

func hoursRule(kind RuleKind, value, hours, entry string) (Rule, error) {
	v, err := parseNumber(value, entry)
	if err != nil {
		return Rule{}, err
	}
	if !hoursPattern.MatchString(hours) {
		return Rule{}, fmt.Errorf("%w %q: bad hours %q", ErrInvalidRule, entry, hours)
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		return Rule{}, fmt.Errorf("%w %q: %v", ErrInvalidRule, entry, err)
	}
	return Rule{Kind: kind, Value: v, Hours: h}, nil
}

func statRule(kind RuleKind, value, entry string) (Rule, error) {
	v, err := parseNumber(value, entry)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Kind: kind, Value: v}, nil
}

/******************** 规则评估 ********************/

// CountHours 统计严格大于(above)或严格小于(below)阈值的小时数
func CountHours(values []float64, r Rule) int {
	n := 0
	for _, v := range values {
		switch {
		case math.IsNaN(v):
		case r.Kind == AboveHoursLimit && v > r.Value:
			n++
		case r.Kind == BelowHoursLimit && v < r.Value:
			n++
		}
	}
	return n
}

// RuleResult 单条小时规则的评估结果
type RuleResult struct {
	Rule   Rule
	Count  int
	Status string
}

// EvaluateHours 对每条小时规则独立评估, 超过限制判定为 Fail
func EvaluateHours(values []float64, rules []Rule) []RuleResult {
	var results []RuleResult
	for _, r := range rules {
		if !r.IsHours() {
			continue
		}
		count := CountHours(values, r)
		status := StatusPass
		if count > r.Hours {
			status = StatusFail
		}
		results = append(results, RuleResult{Rule: r, Count: count, Status: status})
	}
	return results
}

// OutsideHours 汇总超出范围的小时数
// 同方向的多条规则取并集(超过最小的 above 阈值 / 低于最大的 below 阈值),
// 两个方向的结果直接相加, 不去重
func OutsideHours(values []float64, rules []Rule) (above, below int) {
	var (
		hasAbove, hasBelow bool
		aboveAt, belowAt   float64
	)
	for _, r := range rules {
		switch r.Kind {
		case AboveHoursLimit:
			if !hasAbove || r.Value < aboveAt {
				aboveAt = r.Value
			}
			hasAbove = true
		case BelowHoursLimit:
			if !hasBelow || r.Value > belowAt {
				belowAt = r.Value
			}
			hasBelow = true
		}
	}
	if hasAbove {
		above = CountHours(values, Rule{Kind: AboveHoursLimit, Value: aboveAt})
	}
	if hasBelow {
		below = CountHours(values, Rule{Kind: BelowHoursLimit, Value: belowAt})
	}
	return above, below
}

// Stats 非缺失值的平均值和峰值
type Stats struct {
	Average float64
	Peak    float64
	Count   int
}

func (s Stats) Available() bool { return s.Count > 0 }

func Summarize(values []float64) Stats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return Stats{}
	}
	return Stats{
		Average: stat.Mean(present, nil),
		Peak:    floats.Max(present),
		Count:   len(present),
	}
}

// CompositeStatus 平均值和峰值规则的综合状态
// 例如 "Fail (Avg Exceeds 800), Peak Exceeds 2000"
func CompositeStatus(s Stats, rules []Rule) string {
	var failures []string
	if s.Available() {
		for _, r := range rules {
			if r.Kind == AverageLimit && s.Average > r.Value {
				failures = append(failures, "Avg Exceeds "+formatNumber(r.Value))
			}
		}
		for _, r := range rules {
			if r.Kind == PeakLimit && s.Peak > r.Value {
				failures = append(failures, "Peak Exceeds "+formatNumber(r.Value))
			}
		}
	}
	if len(failures) == 0 {
		return StatusPass
	}
	status := fmt.Sprintf("%s (%s)", StatusFail, failures[0])
	for _, f := range failures[1:] {
		status += ", " + f
	}
	return status
}
