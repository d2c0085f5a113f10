// Package aggregate 按 ISO 周计算每个实体的平均指数
package aggregate

import (
	"sort"
	"time"

	"indexcollector/internal/model"
)

// Key 实体 + ISO 年 + ISO 周
type Key struct {
	Entity string
	Year   int
	Week   int
}

// KeyOf 行所属的周
func KeyOf(entity string, date time.Time) Key {
	y, w := date.ISOWeek()
	return Key{Entity: entity, Year: y, Week: w}
}

// Weekly 周平均值；没有任何值的周不存在对应的键
type Weekly map[Key]float64

// Aggregate 对非空值求算术平均
func Aggregate(rows []model.Row) Weekly {
	type acc struct {
		sum float64
		n   int
	}
	sums := map[Key]*acc{}
	for _, r := range rows {
		if r.Value == nil {
			continue
		}
		k := KeyOf(r.Entity, r.Date)
		a := sums[k]
		if a == nil {
			a = &acc{}
			sums[k] = a
		}
		a.sum += *r.Value
		a.n++
	}

	out := make(Weekly, len(sums))
	for k, a := range sums {
		out[k] = a.sum / float64(a.n)
	}
	return out
}

// Get 按键读取
func (w Weekly) Get(k Key) (float64, bool) {
	v, ok := w[k]
	return v, ok
}

// Lookup 读取某实体在某日期所在周的平均值
func (w Weekly) Lookup(entity string, date time.Time) (float64, bool) {
	return w.Get(KeyOf(entity, date))
}

// EntityMean 实体各周平均值的平均
func (w Weekly) EntityMean(entity string) (float64, bool) {
	var keys []Key
	for k := range w {
		if k.Entity == entity {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, false
	}
	// 固定求和顺序，保证浮点结果稳定
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Week < keys[j].Week
	})
	var sum float64
	for _, k := range keys {
		sum += w[k]
	}
	return sum / float64(len(keys)), true
}

func (w Weekly) Len() int { return len(w) }
