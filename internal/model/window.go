package model

import "time"

// DateLayout 报表与日志中统一使用的日期格式
const DateLayout = "2006-01-02"

// WindowDays 每个采集窗口包含的天数
const WindowDays = 7

// Window 一次采集的日期范围（含首尾），日期均为当地零点
type Window struct {
	Start time.Time
	End   time.Time
}

// Days 按升序返回窗口内的每一天
func (w Window) Days() []time.Time {
	days := make([]time.Time, 0, WindowDays)
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + " 到 " + w.End.Format(DateLayout)
}

var weekdayNames = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// WeekdayName 中文星期名称
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}
