package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"BandAnalyzer/src/processor"
	"BandAnalyzer/src/utils"
)

const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

// writeTables 按格式输出所有有列的表, 表之间空一行
func writeTables(w io.Writer, format string, tables []processor.Table) error {
	first := true
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false

		switch format {
		case FormatText:
			fmt.Fprintf(w, "== %s ==\n", t.Name)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
			for _, rec := range t.Records() {
				fmt.Fprintln(tw, strings.Join(rec, "\t"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		case FormatTSV:
			if _, err := fmt.Fprintln(w, t.Flatten("\t")); err != nil {
				return err
			}
		case FormatCSV:
			cw := csv.NewWriter(w)
			if err := cw.Write(t.Columns()); err != nil {
				return err
			}
			if err := cw.WriteAll(t.Records()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown output format %q", format)
		}
	}
	return nil
}

func toSheets(tables []processor.Table) []utils.Sheet {
	var sheets []utils.Sheet
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		sheets = append(sheets, utils.Sheet{Name: t.Name, Header: t.Columns(), Rows: t.Records()})
	}
	return sheets
}

// defaultReportPath 输出目录下带时间戳的文件名
func defaultReportPath(dir, prefix, format string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, time.Now().Format("20060102-150405"), format))
}

// emit 写出报告; xlsx 总是写文件, 其余格式 path 为空时写到 stdout
// 返回实际写入的文件路径
func emit(stdout io.Writer, format, path, outputDir, prefix string, tables []processor.Table) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == FormatXLSX {
		if path == "" {
			path = defaultReportPath(outputDir, prefix, format)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("创建输出目录失败: %w", err)
		}
		if err := utils.SaveToExcel(path, toSheets(tables)...); err != nil {
			return "", err
		}
		return path, nil
	}

	if path == "" {
		return "", writeTables(stdout, format, tables)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := writeTables(f, format, tables); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("保存报告失败: %w", err)
	}
	return path, nil
}

func printDiagnostics(w io.Writer, diags []string) {
	for _, d := range diags {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}
