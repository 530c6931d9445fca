package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// Sheet 导出到 Excel 的一张表
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// SaveToExcel 每张表写入一个工作表, 数字单元格按数值写入
func SaveToExcel(filePath string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("没有可保存的表")
	}
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	for i, sh := range sheets {
		name := sheetName(sh.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("设置工作表名失败: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表失败: %w", err)
		}

		// 写入列名
		header := make([]interface{}, len(sh.Header))
		for c, v := range sh.Header {
			header[c] = v
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}

		// 写入数据
		for r, rec := range sh.Rows {
			row := make([]interface{}, len(rec))
			for c, v := range rec {
				row[c] = cellValue(v)
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("写入数据失败: %w", err)
			}
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// cellValue 可以解析为数字的文本按 float64 写入
func cellValue(s string) interface{} {
	if s == "" {
		return s
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return s
}

// sheetName 去掉 Excel 不允许的字符, 截断到 31 个字符并去重
func sheetName(name string, index int, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
