package model

import "time"

// Row 标准化后的一条观测：某日某实体的指数值，Value 为 nil 表示缺失
type Row struct {
	Date    time.Time
	Weekday time.Weekday
	Entity  string
	Value   *float64
}
