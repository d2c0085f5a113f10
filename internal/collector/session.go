package collector

import (
	"fmt"
	"log/slog"
	"strings"

	"indexcollector/internal/browser"
	"indexcollector/internal/model"
)

// 日期选择器
const (
	datePickerSelector  = ".date-picker"
	startDateSelector   = ".start-date"
	endDateSelector     = ".end-date"
	dateConfirmSelector = ".date-confirm"
)

// 跳转到这些地址说明需要登录
var loginMarkers = []string{"login", "passport", "auth"}

// machine 单次采集的状态机，只在一个 goroutine 中使用
type machine struct {
	sess     browser.Session
	evidence Evidence
	timeouts Timeouts
	logger   *slog.Logger

	state State
	shots []string
}

func newMachine(sess browser.Session, evidence Evidence, timeouts Timeouts, logger *slog.Logger) *machine {
	m := &machine{
		sess:     sess,
		evidence: evidence,
		timeouts: timeouts,
		logger:   logger,
		state:    StateIdle,
	}
	m.transition(StateSessionOpen)
	return m
}

func (m *machine) transition(to State) {
	m.logger.Debug("状态切换", "from", m.state, "to", to)
	m.state = to
}

// open 打开页面并等待页面就绪标志出现
func (m *machine) open(url, readySelector string) error {
	if err := m.sess.Navigate(url); err != nil {
		return fmt.Errorf("访问 %s 失败: %w", url, err)
	}
	m.logger.Info("已访问页面", "url", url)
	if err := m.sess.WaitVisible(readySelector, m.timeouts.Page); err != nil {
		return fmt.Errorf("%w: 页面加载超时: %v", ErrInteractionTimeout, err)
	}
	return nil
}

// authenticated 检查是否被重定向到登录页
func (m *machine) authenticated() bool {
	loc, err := m.sess.Location()
	if err != nil {
		m.logger.Warn("获取当前地址失败", "error", err)
		return true
	}
	loc = strings.ToLower(loc)
	for _, marker := range loginMarkers {
		if strings.Contains(loc, marker) {
			m.logger.Warn("页面跳转到登录地址", "url", loc)
			return false
		}
	}
	return true
}

// submitQuery 输入查询内容并确认；控件超时不重试
func (m *machine) submitQuery(inputSelector, buttonSelector, text string) error {
	if err := m.sess.WaitVisible(inputSelector, m.timeouts.Control); err != nil {
		return fmt.Errorf("%w: 搜索框未出现: %v", ErrInteractionTimeout, err)
	}
	if err := m.sess.SendKeys(inputSelector, text); err != nil {
		return fmt.Errorf("输入关键词失败: %w", err)
	}
	if err := m.sess.Click(buttonSelector); err != nil {
		return fmt.Errorf("点击搜索按钮失败: %w", err)
	}
	m.logger.Info("已提交查询", "keywords", text)
	m.transition(StateQuerySubmitted)
	return nil
}

// setWindow 设置日期范围，失败只记录日志
func (m *machine) setWindow(w model.Window) {
	defer m.transition(StateWindowSet)

	steps := []func() error{
		func() error { return m.sess.WaitVisible(datePickerSelector, m.timeouts.Control) },
		func() error { return m.sess.Click(datePickerSelector) },
		func() error { return m.sess.SendKeys(startDateSelector, w.Start.Format(model.DateLayout)) },
		func() error { return m.sess.SendKeys(endDateSelector, w.End.Format(model.DateLayout)) },
		func() error { return m.sess.Click(dateConfirmSelector) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			m.logger.Warn("设置日期范围失败，使用数据源默认范围", "window", w.String(), "error", err)
			return
		}
	}
	m.logger.Info("已设置日期范围", "window", w.String())
}

// captureEvidence 截图；失败只记录日志
func (m *machine) captureEvidence(tag string) string {
	png, err := m.sess.Screenshot()
	if err != nil {
		m.logger.Warn("截图失败", "tag", tag, "error", err)
		return ""
	}
	path, err := m.evidence.Save(tag, png)
	if err != nil {
		m.logger.Warn("保存截图失败", "tag", tag, "error", err)
		return ""
	}
	m.shots = append(m.shots, path)
	m.transition(StateEvidenceCaptured)
	m.logger.Info("截图已保存", "path", path)
	return path
}

// takeShots 取出已保存的截图路径
func (m *machine) takeShots() []string {
	shots := m.shots
	m.shots = nil
	return shots
}

// extract 优先读取页面结构化数据，不可用时扫描页面元素；两者都没有数据时返回空载荷
func (m *machine) extract(chartSelector, fallbackSelector string) (model.Payload, model.ExtractionMethod) {
	if err := m.sess.WaitVisible(chartSelector, m.timeouts.Chart); err != nil {
		m.logger.Warn("图表未加载，继续尝试提取", "error", err)
	}

	raw, err := m.sess.EvaluateJSON(chartDataScript)
	if err != nil {
		m.logger.Warn("读取页面数据对象失败", "error", err)
	} else if payload, ok := decodeChartData(raw); ok {
		m.transition(StateExtracted)
		return payload, model.MethodPrimary
	}

	m.logger.Warn("无法通过页面数据对象获取数据，尝试解析页面元素")
	values := m.scan(fallbackSelector, "")
	m.transition(StateFallbackExtracted)
	if len(values) == 0 {
		m.logger.Info("页面数据对象与页面元素均无数据")
		return model.EmptyPayload{}, model.MethodFallback
	}
	return model.FallbackPayload(values), model.MethodFallback
}

func (m *machine) scan(selector, entity string) []model.RawValue {
	html, err := m.sess.HTML()
	if err != nil {
		m.logger.Warn("读取页面内容失败", "error", err)
		return nil
	}
	return scanValues(html, selector, entity)
}
