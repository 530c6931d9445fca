// bands.go
package processor

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Bands 升序且去重的分段边界
type Bands []float64

// ParseBands 解析逗号分隔的边界, 无法解析的项被忽略, 没有数字时返回空
func ParseBands(s string) Bands {
	var b Bands
	for _, tok := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		b = append(b, v)
	}
	if len(b) == 0 {
		return nil
	}
	sort.Float64s(b)

	out := b[:1]
	for _, v := range b[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Labels 返回 n+1 个分段名称: "Below b0", "b0-b1", ..., "Above bn"
func (b Bands) Labels() []string {
	if len(b) == 0 {
		return nil
	}
	labels := make([]string, 0, len(b)+1)
	labels = append(labels, "Below "+formatNumber(b[0]))
	for i := 0; i+1 < len(b); i++ {
		labels = append(labels, formatNumber(b[i])+"-"+formatNumber(b[i+1]))
	}
	labels = append(labels, "Above "+formatNumber(b[len(b)-1]))
	return labels
}

// Bin 返回 v 所在分段的下标, 与 Labels 对齐
// 第一个严格大于 v 的边界决定分段, 等于最后一个边界归入 Above
func (b Bands) Bin(v float64) int {
	return sort.Search(len(b), func(i int) bool { return v < b[i] })
}

func (b Bands) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = formatNumber(v)
	}
	return strings.Join(parts, ",")
}

// Histogram 某区域各分段的小时数
type Histogram struct {
	Labels []string
	Counts []int
}

// Empty 未配置分段
func (h Histogram) Empty() bool { return len(h.Labels) == 0 }

func (h Histogram) Count(label string) int {
	for i, l := range h.Labels {
		if l == label {
			return h.Counts[i]
		}
	}
	return 0
}

func (h Histogram) Total() int {
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Classify 统计非缺失值在各分段中的数量, 分段为空时返回空结果
func Classify(values []float64, b Bands) Histogram {
	if len(b) == 0 {
		return Histogram{}
	}
	h := Histogram{
		Labels: b.Labels(),
		Counts: make([]int, len(b)+1),
	}
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		h.Counts[b.Bin(v)]++
	}
	return h
}
