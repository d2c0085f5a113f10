// Package window 计算每次采集的日期范围
package window

import (
	"time"

	"indexcollector/internal/model"
)

// Compute 根据当前时间计算采集窗口
//
// 周五：截止到昨天（本周四）的 7 天；
// 周一：数据源存在发布延迟，截止到上周四（今天 -4 天）的 7 天；
// 其他日期：截止到昨天的滚动 7 天。
func Compute(now time.Time) model.Window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lag := 1
	if now.Weekday() == time.Monday {
		lag = 4
	}

	end := today.AddDate(0, 0, -lag)
	start := end.AddDate(0, 0, -(model.WindowDays - 1))
	return model.Window{Start: start, End: end}
}

// IsCollectionDay 只在周一、周五执行定时采集
func IsCollectionDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Monday, time.Friday:
		return true
	default:
		return false
	}
}
