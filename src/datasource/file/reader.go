// reader.go
package file

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoSheet           = errors.New("sheet not found")
	ErrUnknownEncoding   = errors.New("unknown encoding")
)

// Extensions 可以读取的导出文件类型
var Extensions = []string{".csv", ".xlsx"}

// ReadOptions 读取导出文件的参数
type ReadOptions struct {
	Sheet    string // XLSX 工作表, 为空取第一个
	Encoding string // CSV 编码: auto, utf-8, utf-16, windows-1252, gbk
}

// Supported 按扩展名判断是否是可读取的导出文件
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadFile 按扩展名读取 CSV 或 XLSX, 返回原始单元格文本(包括表头前的行)
func ReadFile(path string, opts ReadOptions) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}
		return ReadCSV(data, opts.Encoding)
	case ".xlsx":
		return ReadXLSX(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadBytes 读取附件等内存中的文件, name 只用来判断类型
func ReadBytes(name string, data []byte, opts ReadOptions) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ReadCSV(data, opts.Encoding)
	case ".xlsx":
		return ReadXLSXBinary(data, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ReadCSV 解码并切分 CSV, 每行字段数可以不同
func ReadCSV(data []byte, encoding string) ([][]string, error) {
	t, err := decoder(data, encoding)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), t))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	return rows, nil
}

// decoder 选择字符集转换
// auto: 有 BOM 按 BOM, 否则合法 UTF-8 原样, 再否则按 Windows-1252
func decoder(data []byte, name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		var fallback transform.Transformer = unicode.UTF8.NewDecoder()
		if !utf8.Valid(data) {
			fallback = charmap.Windows1252.NewDecoder()
		}
		return unicode.BOMOverride(fallback), nil
	case "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "windows-1252", "cp1252", "latin1":
		return charmap.Windows1252.NewDecoder(), nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
}

// ReadXLSX 读取工作表所有行
func ReadXLSX(filePath, sheetName string) ([][]string, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetRows(xlFile, sheetName)
}

// ReadXLSXBinary 同 ReadXLSX, 数据来自内存
func ReadXLSXBinary(data []byte, sheetName string) ([][]string, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("xlsx open binary false: %w", err)
	}
	return sheetRows(xlFile, sheetName)
}

func sheetRows(xlFile *xlsx.File, sheetName string) ([][]string, error) {
	// 2. 获取工作表, 未指定时取第一个
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("excel文件中没有工作表: %w", ErrNoSheet)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		var ok bool
		if sheet, ok = xlFile.Sheet[sheetName]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSheet, sheetName)
		}
	}

	// 3. 转换为文本行
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			if cell != nil {
				cells[i] = cell.Value
			}
		}
		rows = append(rows, trimTrailing(cells))
	}
	return rows, nil
}

// trimTrailing 去掉行尾的空单元格
func trimTrailing(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}

// ReadFrom 从流读取, name 决定类型
func ReadFrom(name string, r io.Reader, opts ReadOptions) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取附件失败: %w", err)
	}
	return ReadBytes(name, data, opts)
}
