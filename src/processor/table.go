// table.go
package processor

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table 输出表: 列名清单 + 统一格式的记录
type Table struct {
	Name    string
	columns []string
	frame   dataframe.DataFrame
}

// newTable 按列构建表, intCols 中的列使用整数类型, 其余为字符串
func newTable(name string, columns []string, intCols map[string]bool, rows [][]string) Table {
	t := Table{Name: name, columns: append([]string(nil), columns...)}
	if len(columns) == 0 {
		return t
	}
	list := make([]series.Series, len(columns))
	for c, col := range columns {
		cells := make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				cells[r] = row[c]
			}
		}
		typ := series.String
		if intCols[col] {
			typ = series.Int
		}
		list[c] = series.New(cells, typ, col)
	}
	t.frame = dataframe.New(list...)
	return t
}

// Columns 列名清单
func (t Table) Columns() []string { return append([]string(nil), t.columns...) }

// Empty 没有列(例如未配置分段)
func (t Table) Empty() bool { return len(t.columns) == 0 }

func (t Table) Len() int {
	if t.Empty() {
		return 0
	}
	return t.frame.Nrow()
}

func (t Table) Frame() dataframe.DataFrame { return t.frame }

// Records 不含表头的记录
func (t Table) Records() [][]string {
	if t.Empty() {
		return nil
	}
	recs := t.frame.Records()
	if len(recs) <= 1 {
		return nil
	}
	return recs[1:]
}

// Maps 每条记录对应一个 列名 -> 值 的映射
func (t Table) Maps() []map[string]string {
	recs := t.Records()
	out := make([]map[string]string, len(recs))
	for i, rec := range recs {
		m := make(map[string]string, len(t.columns))
		for c, col := range t.columns {
			m[col] = rec[c]
		}
		out[i] = m
	}
	return out
}

// Cell 按列名取值, 找不到返回空字符串
func (t Table) Cell(row int, column string) string {
	recs := t.Records()
	if row < 0 || row >= len(recs) {
		return ""
	}
	for c, col := range t.columns {
		if col == column {
			return recs[row][c]
		}
	}
	return ""
}

// Flatten 表头一行, 每条记录一行, 字段用 delim 连接, 不做转义
func (t Table) Flatten(delim string) string {
	if t.Empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(t.columns, delim))
	for _, rec := range t.Records() {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(rec, delim))
	}
	return sb.String()
}
