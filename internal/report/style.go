package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// StyleApplyError 设置样式失败；报表数据不受影响
type StyleApplyError struct {
	Path  string
	Sheet string
	Err   error
}

func (e *StyleApplyError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("设置样式失败 (%s): %v", e.Path, e.Err)
	}
	return fmt.Sprintf("设置样式失败 (%s [%s]): %v", e.Path, e.Sheet, e.Err)
}

func (e *StyleApplyError) Unwrap() error { return e.Err }

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

var center = &excelize.Alignment{Horizontal: "center", Vertical: "center"}

// 表头：蓝底白字加粗
var headerStyle = &excelize.Style{
	Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
	Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	Alignment: center,
	Border:    thinBorder,
}

var dataStyle = &excelize.Style{
	Alignment: center,
	Border:    thinBorder,
}

// ApplyStyles 对报表中每个工作表设置表头与数据区样式；重复调用结果相同
func ApplyStyles(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return &StyleApplyError{Path: path, Err: err}
	}
	defer f.Close()

	header, err := f.NewStyle(headerStyle)
	if err != nil {
		return &StyleApplyError{Path: path, Err: err}
	}
	data, err := f.NewStyle(dataStyle)
	if err != nil {
		return &StyleApplyError{Path: path, Err: err}
	}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return &StyleApplyError{Path: path, Sheet: sheet, Err: err}
		}
		if len(rows) == 0 || len(rows[0]) == 0 {
			continue
		}
		maxCol := len(rows[0])
		last, _ := excelize.ColumnNumberToName(maxCol)

		if err := f.SetCellStyle(sheet, "A1", last+"1", header); err != nil {
			return &StyleApplyError{Path: path, Sheet: sheet, Err: err}
		}
		if len(rows) > 1 {
			end := fmt.Sprintf("%s%d", last, len(rows))
			if err := f.SetCellStyle(sheet, "A2", end, data); err != nil {
				return &StyleApplyError{Path: path, Sheet: sheet, Err: err}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return &StyleApplyError{Path: path, Err: err}
	}
	if err := writeBytesAtomic(path, buf.Bytes()); err != nil {
		return &StyleApplyError{Path: path, Err: err}
	}
	return nil
}
