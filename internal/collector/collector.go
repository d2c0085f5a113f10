// Package collector 两个固定数据源的采集器
//
// 每个采集器在一次运行中独占一个浏览器会话，按固定状态机推进：
// 打开会话 → 提交查询 → 设置日期范围 → 截图留证 → 提取数据（失败时降级为解析页面元素）→ 关闭会话。
// 采集器从不向上抛错：任何失败都会转换成结构完整的空结果，并在 Failure 中写明原因。
package collector

import (
	"context"
	"errors"
	"time"

	"indexcollector/internal/model"
)

var (
	// ErrSession 无法获取浏览器会话
	ErrSession = errors.New("浏览器会话启动失败")
	// ErrInteractionTimeout 预期的页面控件未在限定时间内出现
	ErrInteractionTimeout = errors.New("页面控件等待超时")
	// ErrNotAuthenticated 数据源要求登录
	ErrNotAuthenticated = errors.New("数据源需要登录")
)

// Source 数据源采集器
type Source interface {
	Name() string
	Collect(ctx context.Context, w model.Window, entities []string) []model.RawSourceResult
}

// Timeouts 各类等待的上限
type Timeouts struct {
	Page    time.Duration // 页面就绪
	Control time.Duration // 输入框、按钮等控件
	Chart   time.Duration // 图表渲染
}

// DefaultTimeouts 默认等待时间
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Page:    20 * time.Second,
		Control: 10 * time.Second,
		Chart:   15 * time.Second,
	}
}

// State 采集状态机的状态
type State string

const (
	StateIdle              State = "idle"
	StateSessionOpen       State = "session_open"
	StateQuerySubmitted    State = "query_submitted"
	StateWindowSet         State = "window_set"
	StateEvidenceCaptured  State = "evidence_captured"
	StateExtracted         State = "extracted"
	StateFallbackExtracted State = "fallback_extracted"
	StateManualEscalation  State = "manual_escalation"
	StateClosed            State = "closed"
)
