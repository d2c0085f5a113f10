package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"indexcollector/internal/browser"
	"indexcollector/internal/model"
)

// 社交指数页面元素
const (
	socialReadySelector    = ".index-container"
	socialInputSelector    = ".search-input"
	socialButtonSelector   = ".search-btn"
	socialChartSelector    = ".index-chart"
	socialFallbackSelector = ".index-value, .data-point, .trend-number"
)

// SocialTrend 社交指数采集器；网页版不可用时转为人工收集指引
type SocialTrend struct {
	launcher browser.Launcher
	evidence Evidence
	url      string
	timeouts Timeouts
	logger   *slog.Logger
}

// NewSocialTrend 创建社交指数采集器
func NewSocialTrend(launcher browser.Launcher, evidence Evidence, url string, timeouts Timeouts, logger *slog.Logger) *SocialTrend {
	return &SocialTrend{
		launcher: launcher,
		evidence: evidence,
		url:      url,
		timeouts: timeouts,
		logger:   logger,
	}
}

func (s *SocialTrend) Name() string { return "微信指数" }

// Collect 返回一个 social 结果
func (s *SocialTrend) Collect(ctx context.Context, w model.Window, entities []string) []model.RawSourceResult {
	s.logger.Info("开始收集微信指数数据", "window", w.String())

	var result *model.RawSourceResult
	err := browser.WithSession(ctx, s.launcher, func(sess browser.Session) error {
		m := newMachine(sess, s.evidence, s.timeouts, s.logger)
		defer m.transition(StateClosed)

		if err := m.open(s.url, socialReadySelector); err != nil {
			s.logger.Warn("微信指数网页版不可用，切换到手动收集模式", "error", err)
			r := s.escalate(m, w, entities, "微信指数网页版不可用")
			result = &r
			return nil
		}
		if !m.authenticated() {
			s.logger.Warn("需要登录微信指数网页版，切换到手动收集模式")
			r := s.escalate(m, w, entities, ErrNotAuthenticated.Error())
			result = &r
			return nil
		}

		r := s.collectEntities(m, w, entities)
		result = &r
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSession, err)
		s.logger.Error("收集微信指数数据失败", "error", err)
	}

	r := finish(result, model.SourceSocial, err)
	s.logger.Info("数据源采集结束", "source", r.Source, "method", r.Method, "empty", r.IsEmpty())
	return []model.RawSourceResult{r}
}

// collectEntities 逐个关键词查询并合并结果
func (s *SocialTrend) collectEntities(m *machine, w model.Window, entities []string) model.RawSourceResult {
	var (
		values      []model.RawValue
		allPrimary  = true
		allDated    = true
		failedNames []string
	)

	for i, entity := range entities {
		if err := m.submitQuery(socialInputSelector, socialButtonSelector, entity); err != nil {
			s.logger.Error("搜索关键词失败", "keyword", entity, "error", err)
			if errors.Is(err, ErrInteractionTimeout) {
				// 搜索框不在，后面的关键词同样会超时
				failedNames = append(failedNames, entities[i:]...)
				break
			}
			failedNames = append(failedNames, entity)
			continue
		}
		m.setWindow(w)
		m.captureEvidence(fmt.Sprintf("web_%d", i+1))

		got, primary := s.extractEntity(m, entity)
		if len(got) == 0 {
			s.logger.Warn("未获取到关键词数据", "keyword", entity)
			continue
		}
		allPrimary = allPrimary && primary
		for _, v := range got {
			allDated = allDated && v.Date != ""
		}
		values = append(values, got...)
	}

	result := model.RawSourceResult{
		Source:        model.SourceSocial,
		EvidencePaths: m.takeShots(),
	}
	if len(failedNames) > 0 {
		result.Failure = "以下关键词搜索失败: " + strings.Join(failedNames, ", ")
	}

	switch {
	case len(values) == 0:
		result.Method = model.MethodFallback
		result.Payload = model.EmptyPayload{}
	case allPrimary && allDated:
		payload := model.PrimaryPayload{}
		for _, v := range values {
			if payload[v.Date] == nil {
				payload[v.Date] = map[string]string{}
			}
			payload[v.Date][v.Entity] = v.Raw
		}
		result.Method = model.MethodPrimary
		result.Payload = payload
	default:
		// 有来自页面文本的值或缺少日期的值，按位置整理
		result.Method = model.MethodFallback
		result.Payload = model.FallbackPayload(values)
	}
	return result
}

// extractEntity 提取单个关键词的数据，返回值及是否来自页面数据对象
func (s *SocialTrend) extractEntity(m *machine, entity string) ([]model.RawValue, bool) {
	if err := m.sess.WaitVisible(socialChartSelector, m.timeouts.Chart); err != nil {
		s.logger.Warn("图表未加载，继续尝试提取", "keyword", entity, "error", err)
	}

	raw, err := m.sess.EvaluateJSON(chartDataScript)
	if err != nil {
		s.logger.Warn("读取页面数据对象失败", "keyword", entity, "error", err)
	} else if values, ok := decodeSeries(raw, entity); ok {
		s.logger.Info("成功获取微信指数数据", "keyword", entity)
		m.transition(StateExtracted)
		return values, true
	}

	values := m.scan(socialFallbackSelector, entity)
	m.transition(StateFallbackExtracted)
	return values, false
}

// escalate 渲染人工收集指引页并截图
func (s *SocialTrend) escalate(m *machine, w model.Window, entities []string, reason string) model.RawSourceResult {
	m.transition(StateManualEscalation)
	s.logger.Info("启动手动收集辅助模式")

	if err := m.sess.Navigate("about:blank"); err != nil {
		s.logger.Warn("打开空白页失败", "error", err)
	}
	script, err := guideScript(w, entities)
	if err == nil {
		err = m.sess.Exec(script)
	}
	if err != nil {
		s.logger.Warn("渲染手动收集指引失败", "error", err)
	} else {
		m.captureEvidence("manual_guide")
	}

	return model.RawSourceResult{
		Source:        model.SourceSocial,
		Method:        model.MethodManual,
		Payload:       model.EmptyPayload{},
		EvidencePaths: m.takeShots(),
		Failure:       reason + "，请按截图中的指引手动收集",
	}
}

// guideScript 生成写入指引页面的脚本
func guideScript(w model.Window, entities []string) (string, error) {
	var b strings.Builder
	b.WriteString(`<div style="padding: 20px; font-family: Arial, sans-serif;">`)
	b.WriteString(`<h2 style="color: #07c160;">微信指数数据收集提示</h2>`)
	b.WriteString(`<div style="background: #f0f0f0; padding: 15px; border-radius: 8px; margin: 20px 0;">`)
	fmt.Fprintf(&b, `<h3>收集时间范围：%s 至 %s</h3>`,
		w.Start.Format(model.DateLayout), w.End.Format(model.DateLayout))
	b.WriteString(`<h3>需要收集的关键词：</h3><ul style="font-size: 16px; line-height: 1.8;">`)
	for _, e := range entities {
		b.WriteString("<li>" + html.EscapeString(e) + "</li>")
	}
	b.WriteString(`</ul><h3>操作步骤：</h3><ol style="font-size: 14px; line-height: 1.8;">`)
	for _, step := range []string{"打开微信，搜索“微信指数”小程序", "分别搜索以上关键词", "记录每日指数数据", "截图保存", "将数据填入Excel模板"} {
		b.WriteString("<li>" + step + "</li>")
	}
	b.WriteString(`</ol><p style="color: #666; font-size: 12px;">注：微信指数小程序无法直接自动化获取数据</p></div></div>`)

	content, err := json.Marshal(b.String())
	if err != nil {
		return "", err
	}
	return "document.body.innerHTML = " + string(content) + "; true", nil
}
