// Package sheet 基于 excelize 的表格读写封装。
// 行号、列号均从 1 开始，与表格界面一致。
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrSheetNotFound = errors.New("工作表不存在")
	ErrInvalidRange  = errors.New("无效的行列范围")
)

// Store 表格读写接口
type Store interface {
	// ReadRange 读取 [fromRow,toRow] × [fromCol,toCol] 的单元格文本，越界部分补空串。
	// 以日期格式显示的数值单元格按实际值返回 ISO 日期
	ReadRange(sheet string, fromRow, toRow, fromCol, toCol int) ([][]string, error)
	// WriteRange 以 (row,col) 为左上角写入 values
	WriteRange(sheet string, row, col int, values [][]string) error
	// AppendRows 在最后一个非空行之后追加，返回首个写入行号
	AppendRows(sheet string, rows [][]string) (int, error)
	// DeleteRows 删除自 fromRow 起的 count 行，下方行上移
	DeleteRows(sheet string, fromRow, count int) error
	// SortByColumn 按 col 列排序 headerRows 之后的数据行；日期按时间比较，其余按文本比较
	SortByColumn(sheet string, col, headerRows int, desc bool) error
	// LastRow 最后一个非空行的行号，空表返回 0
	LastRow(sheet string) (int, error)
}

// Workbook excelize 工作簿实现
type Workbook struct {
	f *excelize.File
}

var _ Store = (*Workbook)(nil)

// New 创建只含一个工作表的新工作簿
func New(sheetName string) (*Workbook, error) {
	f := excelize.NewFile()
	if sheetName != "" && sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("重命名工作表失败: %w", err)
		}
	}
	return &Workbook{f: f}, nil
}

// Open 从 xlsx 数据流打开工作簿
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("解析工作簿失败: %w", err)
	}
	return &Workbook{f: f}, nil
}

// OpenFile 打开本地 xlsx 文件
func OpenFile(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开工作簿失败: %w", err)
	}
	return &Workbook{f: f}, nil
}

// FirstSheet 第一个工作表名称
func (w *Workbook) FirstSheet() string {
	return w.f.GetSheetName(0)
}

// AddSheet 新增工作表
func (w *Workbook) AddSheet(name string) error {
	_, err := w.f.NewSheet(name)
	return err
}

// Bytes 序列化为 xlsx
func (w *Workbook) Bytes() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := w.f.Write(buf); err != nil {
		return nil, fmt.Errorf("写入工作簿失败: %w", err)
	}
	return buf, nil
}

// Close 释放工作簿资源
func (w *Workbook) Close() error {
	return w.f.Close()
}

func (w *Workbook) rows(sheet string) ([][]string, error) {
	if idx, _ := w.f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return w.f.GetRows(sheet)
}

func (w *Workbook) ReadRange(sheet string, fromRow, toRow, fromCol, toCol int) ([][]string, error) {
	if fromRow < 1 || fromCol < 1 || toRow < fromRow || toCol < fromCol {
		return nil, ErrInvalidRange
	}
	all, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, toRow-fromRow+1)
	for r := fromRow; r <= toRow; r++ {
		line := make([]string, toCol-fromCol+1)
		if r-1 < len(all) {
			src := all[r-1]
			for c := fromCol; c <= toCol; c++ {
				if c-1 >= len(src) {
					continue
				}
				line[c-fromCol] = src[c-1]
				if r-1 < len(raw) && c-1 < len(raw[r-1]) {
					if d, ok := w.cellDate(sheet, c, r, raw[r-1][c-1]); ok {
						line[c-fromCol] = d
					}
				}
			}
		}
		out = append(out, line)
	}
	return out, nil
}

// cellDate 数值单元格带日期格式时按序列值换算，不依赖显示格式中的日/月顺序
func (w *Workbook) cellDate(sheet string, col, row int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := w.f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return "", false
	}
	st, err := w.f.GetStyle(styleID)
	if err != nil || !isDateFormat(st) {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, w.date1904())
	if err != nil {
		return "", false
	}
	return formatCellDate(t), true
}

func (w *Workbook) date1904() bool {
	props, err := w.f.GetWorkbookProps()
	return err == nil && props.Date1904 != nil && *props.Date1904
}

func formatCellDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// isDateFormat 内置日期格式 14-22、27-36、50-58，或含 y/d 记号的自定义格式
func isDateFormat(st *excelize.Style) bool {
	if st.CustomNumFmt != nil {
		return isDateCode(*st.CustomNumFmt)
	}
	switch id := st.NumFmt; {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

func isDateCode(code string) bool {
	var (
		b       strings.Builder
		quoted  bool
		bracket bool
	)
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '[':
			bracket = true
		case ch == ']':
			bracket = false
		case bracket:
		case ch == '\\' || ch == '_' || ch == '*':
			i++ // 转义与填充字符后跟一个字面字符
		default:
			b.WriteByte(ch)
		}
	}
	plain := strings.ToLower(b.String())
	return strings.ContainsAny(plain, "yd")
}

func (w *Workbook) WriteRange(sheet string, row, col int, values [][]string) error {
	if row < 1 || col < 1 {
		return ErrInvalidRange
	}
	if idx, _ := w.f.GetSheetIndex(sheet); idx < 0 {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	for i, line := range values {
		cell, err := excelize.CoordinatesToCellName(col, row+i)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(line))
		for j, v := range line {
			vals[j] = v
		}
		if err := w.f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) LastRow(sheet string) (int, error) {
	all, err := w.rows(sheet)
	if err != nil {
		return 0, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		for _, v := range all[i] {
			if v != "" {
				return i + 1, nil
			}
		}
	}
	return 0, nil
}

func (w *Workbook) AppendRows(sheet string, rows [][]string) (int, error) {
	last, err := w.LastRow(sheet)
	if err != nil {
		return 0, err
	}
	start := last + 1
	if err := w.WriteRange(sheet, start, 1, rows); err != nil {
		return 0, err
	}
	return start, nil
}

func (w *Workbook) DeleteRows(sheet string, fromRow, count int) error {
	if fromRow < 1 || count < 0 {
		return ErrInvalidRange
	}
	if idx, _ := w.f.GetSheetIndex(sheet); idx < 0 {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	// 同一行号重复删除，下方行逐次上移
	for i := 0; i < count; i++ {
		if err := w.f.RemoveRow(sheet, fromRow); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) SortByColumn(sheet string, col, headerRows int, desc bool) error {
	if col < 1 || headerRows < 0 {
		return ErrInvalidRange
	}
	all, err := w.rows(sheet)
	if err != nil {
		return err
	}
	if len(all) <= headerRows+1 {
		return nil
	}

	width := 0
	for _, line := range all {
		if len(line) > width {
			width = len(line)
		}
	}
	data := all[headerRows:]
	key := func(line []string) string {
		if col-1 < len(line) {
			return line[col-1]
		}
		return ""
	}
	sort.SliceStable(data, func(i, j int) bool {
		c := compareCells(key(data[i]), key(data[j]))
		if desc {
			return c > 0
		}
		return c < 0
	})

	// 补齐列宽，保证短行覆盖掉原位置的旧值
	padded := make([][]string, len(data))
	for i, line := range data {
		p := make([]string, width)
		copy(p, line)
		padded[i] = p
	}
	return w.WriteRange(sheet, headerRows+1, 1, padded)
}

var cellDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"2006/01/02",
	"1-2-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"1/2/2006 15:04:05",
	time.RFC3339,
}

// 序列值上限对应 9999-12-31
const maxExcelSerial = 2958465

// ParseDateText 按常见日期文本格式解析
func ParseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCellDate 解析单元格日期：先按文本格式，再按 1900 日期系统的序列值（常规格式的日期单元格）
func ParseCellDate(s string) (time.Time, bool) {
	if t, ok := ParseDateText(s); ok {
		return t, true
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func compareCells(a, b string) int {
	ta, okA := ParseCellDate(a)
	tb, okB := ParseCellDate(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

// ── 导出样式 ──

// CellStyle 导出表格使用的单元格样式
type CellStyle struct {
	Bold      bool
	FontColor string // 如 "#FF0000"
	Fill      string // 背景色，空表示不填充
}

// SetStyle 为 [fromRow,toRow] × [fromCol,toCol] 设置样式
func (w *Workbook) SetStyle(sheet string, fromRow, fromCol, toRow, toCol int, st CellStyle) error {
	topLeft, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	bottomRight, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	style := &excelize.Style{Font: &excelize.Font{Bold: st.Bold, Color: st.FontColor}}
	if st.Fill != "" {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{st.Fill}, Pattern: 1}
	}
	id, err := w.f.NewStyle(style)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(sheet, topLeft, bottomRight, id)
}

// SetColWidth 设置 [fromCol,toCol] 列宽
func (w *Workbook) SetColWidth(sheet string, fromCol, toCol int, width float64) error {
	start, err := excelize.ColumnNumberToName(fromCol)
	if err != nil {
		return err
	}
	end, err := excelize.ColumnNumberToName(toCol)
	if err != nil {
		return err
	}
	return w.f.SetColWidth(sheet, start, end, width)
}
