package collector

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"indexcollector/internal/model"
)

// 页面内结构化数据对象
const chartDataScript = `JSON.stringify(window.chartData || window.indexData || null)`

// decodeChartData 解析 {外层键: {内层键: 值}} 形式的图表数据
func decodeChartData(raw string) (model.PrimaryPayload, bool) {
	var data map[string]map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil || len(data) == 0 {
		return nil, false
	}

	payload := model.PrimaryPayload{}
	for outer, inner := range data {
		values := map[string]string{}
		for k, v := range inner {
			if s, ok := rawString(v); ok {
				values[k] = s
			}
		}
		if len(values) > 0 {
			payload[outer] = values
		}
	}
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// decodeSeries 解析单个关键词的图表数据：{日期: 值} 或 [值, ...]
func decodeSeries(raw, entity string) ([]model.RawValue, bool) {
	raw = strings.TrimSpace(raw)

	var byDate map[string]any
	if err := json.Unmarshal([]byte(raw), &byDate); err == nil && len(byDate) > 0 {
		var out []model.RawValue
		for date, v := range byDate {
			if s, ok := rawString(v); ok {
				out = append(out, model.RawValue{Entity: entity, Date: date, Raw: s})
			}
		}
		return out, len(out) > 0
	}

	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) > 0 {
		var out []model.RawValue
		for _, v := range list {
			if s, ok := rawString(v); ok {
				out = append(out, model.RawValue{Entity: entity, Raw: s})
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

func rawString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// scanValues 扫描页面中带值的元素
//
// 关键词优先取元素的 data-keyword 属性，缺失时使用 entity；日期取 data-date 属性（可缺失）。
func scanValues(html, selector, entity string) []model.RawValue {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []model.RawValue
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		keyword := strings.TrimSpace(s.AttrOr("data-keyword", entity))
		value := strings.TrimSpace(s.Text())
		if keyword == "" || value == "" {
			return
		}
		out = append(out, model.RawValue{
			Entity: keyword,
			Date:   strings.TrimSpace(s.AttrOr("data-date", "")),
			Raw:    value,
		})
	})
	return out
}
