// Package normalize 把各数据源的原始结果整理成统一的稠密行
package normalize

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"indexcollector/internal/model"
)

// 页面上可能出现的日期格式
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006-1-2",
	"2006/1/2",
}

// Normalizer 原始结果整理器；不返回错误，所有异常只记录日志
type Normalizer struct {
	logger *slog.Logger
}

// New 创建整理器
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize 返回 |窗口天数|×|实体数| 行，按日期再按实体配置顺序排列；缺失或无法解析的值为 nil
func (n *Normalizer) Normalize(raw model.RawSourceResult, w model.Window, entities []string) []model.Row {
	days := w.Days()
	g := newGrid(days, entities)

	switch p := raw.Payload.(type) {
	case model.PrimaryPayload:
		n.fillPrimary(g, raw.Source, p, w)
	case model.FallbackPayload:
		n.fillFallback(g, raw.Source, p, w)
	case model.EmptyPayload, nil:
		n.logger.Info("数据源无数据，输出空行", "source", raw.Source, "method", raw.Method)
	default:
		n.logger.Warn("未知的数据载荷类型", "source", raw.Source)
	}

	rows := make([]model.Row, 0, len(days)*len(entities))
	for di, d := range days {
		for ei, e := range entities {
			rows = append(rows, model.Row{
				Date:    d,
				Weekday: d.Weekday(),
				Entity:  e,
				Value:   g.values[di][ei],
			})
		}
	}
	return rows
}

// grid 日期 × 实体 的值表
type grid struct {
	dayIndex    map[string]int
	entityIndex map[string]int
	values      [][]*float64
	taken       [][]bool // 已有值（包括明确的缺失值 "-"）
}

func (g *grid) set(di, ei int, v *float64) {
	g.values[di][ei] = v
	g.taken[di][ei] = true
}

func newGrid(days []time.Time, entities []string) *grid {
	g := &grid{
		dayIndex:    make(map[string]int, len(days)),
		entityIndex: make(map[string]int, len(entities)),
		values:      make([][]*float64, len(days)),
		taken:       make([][]bool, len(days)),
	}
	for i, d := range days {
		g.dayIndex[d.Format(model.DateLayout)] = i
		g.values[i] = make([]*float64, len(entities))
		g.taken[i] = make([]bool, len(entities))
	}
	for i, e := range entities {
		g.entityIndex[e] = i
	}
	return g
}

// fillPrimary 结构化数据，外层键是日期或实体两种方向均可
func (n *Normalizer) fillPrimary(g *grid, source model.Source, p model.PrimaryPayload, w model.Window) {
	outer := make([]string, 0, len(p))
	for k := range p {
		outer = append(outer, k)
	}
	sort.Strings(outer)

	dateMajor := 0
	for _, k := range outer {
		if _, ok := parseDate(k, w.Start.Location()); ok {
			dateMajor++
		}
	}
	byDate := dateMajor*2 >= len(outer)

	for _, o := range outer {
		inner := p[o]
		keys := make([]string, 0, len(inner))
		for k := range inner {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, i := range keys {
			date, entity := o, i
			if !byDate {
				date, entity = i, o
			}
			n.place(g, source, w, entity, date, inner[i])
		}
	}
}

func (n *Normalizer) place(g *grid, source model.Source, w model.Window, entity, date, raw string) {
	ei, ok := g.entityIndex[strings.TrimSpace(entity)]
	if !ok {
		n.logger.Debug("忽略未配置的关键词", "source", source, "entity", entity)
		return
	}
	d, ok := parseDate(date, w.Start.Location())
	if !ok {
		n.logger.Warn("无法解析日期", "source", source, "date", date)
		return
	}
	di, ok := g.dayIndex[d.Format(model.DateLayout)]
	if !ok {
		n.logger.Debug("日期不在采集范围内", "source", source, "date", date)
		return
	}
	v, ok := ParseValue(raw)
	if !ok {
		n.logger.Warn("无法解析指数值", "source", source, "entity", entity, "date", date, "value", raw)
		return
	}
	g.set(di, ei, v)
}

// fillFallback 页面元素扫描结果：带日期的值放到对应日期，不带日期的值按窗口顺序填入该实体尚空的日期
func (n *Normalizer) fillFallback(g *grid, source model.Source, p model.FallbackPayload, w model.Window) {
	var undated []model.RawValue
	for _, v := range p {
		if strings.TrimSpace(v.Date) == "" {
			undated = append(undated, v)
			continue
		}
		n.place(g, source, w, v.Entity, v.Date, v.Raw)
	}

	overflow := 0
	for _, v := range undated {
		ei, ok := g.entityIndex[strings.TrimSpace(v.Entity)]
		if !ok {
			n.logger.Debug("忽略未配置的关键词", "source", source, "entity", v.Entity)
			continue
		}
		di := -1
		for i := range g.taken {
			if !g.taken[i][ei] {
				di = i
				break
			}
		}
		if di < 0 {
			overflow++
			continue
		}
		val, ok := ParseValue(v.Raw)
		if !ok {
			n.logger.Warn("无法解析指数值", "source", source, "entity", v.Entity, "value", v.Raw)
		}
		g.set(di, ei, val)
	}
	if overflow > 0 {
		n.logger.Warn("页面元素数量超过采集天数，多余的值已忽略", "source", source, "count", overflow)
	}
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseValue 解析指数值，接受千分位、全角数字与首尾空白；空值与 "-" 视为缺失
func ParseValue(raw string) (*float64, bool) {
	s := width.Narrow.String(raw)
	s = strings.NewReplacer(",", "", "，", "").Replace(s)
	s = strings.Join(strings.Fields(s), "")
	if s == "" || s == "-" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}
