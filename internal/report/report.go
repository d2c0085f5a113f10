// Package report 生成运营商指数 Excel 报表
package report

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"indexcollector/internal/aggregate"
	"indexcollector/internal/model"
)

// SummarySheet 汇总表名称
const SummarySheet = "数据汇总"

// 固定表头
const (
	headerDate       = "日期"
	headerWeekday    = "星期"
	headerWeeklyMean = "每周指数平均值"
)

// RenderError 报表写入失败
type RenderError struct {
	Path string
	Op   string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("生成报表失败 (%s %s): %v", e.Op, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer 报表生成器
type Renderer struct {
	entities    []string
	entityLabel string
	logger      *slog.Logger
}

// NewRenderer 创建报表生成器；entities 决定列顺序，entityLabel 为汇总表首列表头
func NewRenderer(entities []string, entityLabel string, logger *slog.Logger) *Renderer {
	if entityLabel == "" {
		entityLabel = "实体"
	}
	return &Renderer{
		entities:    entities,
		entityLabel: entityLabel,
		logger:      logger,
	}
}

// Render 写出报表并应用样式；样式失败只记录日志
func (r *Renderer) Render(bySource map[model.Source][]model.Row, weekly map[model.Source]aggregate.Weekly, w model.Window, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, source := range model.Sources {
		sheet := source.SheetName()
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return &RenderError{Path: path, Op: "sheet", Err: err}
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return &RenderError{Path: path, Op: "sheet", Err: err}
		}

		rows := bySource[source]
		if len(rows) == 0 {
			r.logger.Info("数据源无数据，使用空模板", "sheet", sheet)
			rows = r.template(w)
		}
		if err := r.writeSourceSheet(f, source, rows, weekly[source]); err != nil {
			return &RenderError{Path: path, Op: "write", Err: err}
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return &RenderError{Path: path, Op: "sheet", Err: err}
	}
	if err := r.writeSummary(f, weekly); err != nil {
		return &RenderError{Path: path, Op: "write", Err: err}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return &RenderError{Path: path, Op: "encode", Err: err}
	}
	if err := writeBytesAtomic(path, buf.Bytes()); err != nil {
		return &RenderError{Path: path, Op: "save", Err: err}
	}
	r.logger.Info("报表已生成", "path", path)

	if err := ApplyStyles(path); err != nil {
		r.logger.Error("设置报表样式失败，保留无样式数据", "path", path, "error", err)
	}
	return nil
}

// template 窗口内每天每个实体一行的空数据
func (r *Renderer) template(w model.Window) []model.Row {
	var rows []model.Row
	for _, d := range w.Days() {
		for _, e := range r.entities {
			rows = append(rows, model.Row{Date: d, Weekday: d.Weekday(), Entity: e})
		}
	}
	return rows
}

// headers 数据源工作表的表头
func (r *Renderer) headers(source model.Source) []string {
	headers := []string{headerDate, headerWeekday}
	for _, e := range r.entities {
		headers = append(headers, e+source.SeriesLabel(), headerWeeklyMean)
	}
	return append(headers, source.TrendHeader())
}

func (r *Renderer) writeSourceSheet(f *excelize.File, source model.Source, rows []model.Row, weekly aggregate.Weekly) error {
	sheet := source.SheetName()
	headers := r.headers(source)
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	// 行按日期分组，实体按配置顺序放到对应列
	col := make(map[string]int, len(r.entities))
	for i, e := range r.entities {
		col[e] = 3 + 2*i
	}
	var dates []time.Time
	rowOf := map[string]int{}
	for _, row := range rows {
		key := row.Date.Format(model.DateLayout)
		if _, ok := rowOf[key]; !ok {
			dates = append(dates, row.Date)
			rowOf[key] = len(dates) + 1
		}
	}

	for _, d := range dates {
		n := rowOf[d.Format(model.DateLayout)]
		if err := setCell(f, sheet, 1, n, d.Format(model.DateLayout)); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, n, model.WeekdayName(d.Weekday())); err != nil {
			return err
		}
	}
	for _, row := range rows {
		c, ok := col[row.Entity]
		if !ok {
			continue
		}
		n := rowOf[row.Date.Format(model.DateLayout)]
		if row.Value != nil {
			if err := setCell(f, sheet, c, n, round2(*row.Value)); err != nil {
				return err
			}
		}
		if mean, ok := weekly.Lookup(row.Entity, row.Date); ok {
			if err := setCell(f, sheet, c+1, n, round2(mean)); err != nil {
				return err
			}
		}
	}

	if len(dates) > 0 {
		r.addTrendChart(f, source, len(headers), len(dates))
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", last, 18)
	return nil
}

// addTrendChart 在趋势对比列放置各实体每日指数折线图；失败只记录日志
func (r *Renderer) addTrendChart(f *excelize.File, source model.Source, trendCol, dataRows int) {
	sheet := source.SheetName()
	ref := "'" + sheet + "'"
	lastRow := dataRows + 1

	var series []excelize.ChartSeries
	for i := range r.entities {
		colName, _ := excelize.ColumnNumberToName(3 + 2*i)
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", ref, colName),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", ref, lastRow),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", ref, colName, colName, lastRow),
		})
	}

	anchor, _ := excelize.CoordinatesToCellName(trendCol, 2)
	err := f.AddChart(sheet, anchor, &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: source.TrendHeader()}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		Dimension: excelize.ChartDimension{
			Width:  480,
			Height: 260,
		},
	})
	if err != nil {
		r.logger.Warn("添加趋势图失败", "sheet", sheet, "error", err)
	}
}

// writeSummary 每个实体一行，每个数据源一列：各周平均值的平均
func (r *Renderer) writeSummary(f *excelize.File, weekly map[model.Source]aggregate.Weekly) error {
	headers := []string{r.entityLabel}
	for _, source := range model.Sources {
		headers = append(headers, source.SummaryHeader())
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &headers); err != nil {
		return err
	}

	for i, e := range r.entities {
		n := i + 2
		if err := setCell(f, SummarySheet, 1, n, e); err != nil {
			return err
		}
		for j, source := range model.Sources {
			mean, ok := weekly[source].EntityMean(e)
			if !ok {
				continue
			}
			if err := setCell(f, SummarySheet, j+2, n, round2(mean)); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(SummarySheet, "A", last, 18)
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FileName 报表文件名 <prefix>_<YYYYMMDD_HHMMSS>.xlsx
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, t.Format("20060102_150405"))
}

func writeBytesAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
