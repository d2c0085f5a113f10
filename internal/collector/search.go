package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"indexcollector/internal/browser"
	"indexcollector/internal/model"
)

// 搜索指数页面元素
const (
	searchReadySelector    = ".home-header"
	searchInputSelector    = ".search-input"
	searchButtonSelector   = ".search-btn"
	searchChartSelector    = ".index-trend-chart"
	searchFallbackSelector = ".index-data-item, .data-point, .trend-value"
	searchNewsTabSelector  = ".info-index"
)

// SearchTrend 搜索指数采集器，一次会话产出搜索指数与资讯指数两个结果
type SearchTrend struct {
	launcher browser.Launcher
	evidence Evidence
	url      string
	timeouts Timeouts
	logger   *slog.Logger
}

// NewSearchTrend 创建搜索指数采集器
func NewSearchTrend(launcher browser.Launcher, evidence Evidence, url string, timeouts Timeouts, logger *slog.Logger) *SearchTrend {
	return &SearchTrend{
		launcher: launcher,
		evidence: evidence,
		url:      url,
		timeouts: timeouts,
		logger:   logger,
	}
}

func (s *SearchTrend) Name() string { return "百度指数" }

// Collect 总是返回 [search, news] 两个结果
func (s *SearchTrend) Collect(ctx context.Context, w model.Window, entities []string) []model.RawSourceResult {
	s.logger.Info("开始收集百度指数数据", "window", w.String())

	var search, news *model.RawSourceResult
	err := browser.WithSession(ctx, s.launcher, func(sess browser.Session) error {
		m := newMachine(sess, s.evidence, s.timeouts, s.logger)
		defer m.transition(StateClosed)

		if err := m.open(s.url, searchReadySelector); err != nil {
			return err
		}
		if !m.authenticated() {
			m.captureEvidence("login")
			return ErrNotAuthenticated
		}
		if err := m.submitQuery(searchInputSelector, searchButtonSelector, strings.Join(entities, ",")); err != nil {
			return err
		}
		m.setWindow(w)

		m.captureEvidence("search")
		payload, method := m.extract(searchChartSelector, searchFallbackSelector)
		search = &model.RawSourceResult{
			Source:        model.SourceSearch,
			Method:        method,
			Payload:       payload,
			EvidencePaths: m.takeShots(),
		}

		if err := sess.Click(searchNewsTabSelector); err != nil {
			s.logger.Warn("切换到资讯指数失败", "error", err)
			r := model.EmptyResult(model.SourceNews, model.MethodNone, "切换到资讯指数失败")
			news = &r
			return nil
		}
		m.captureEvidence("news")
		payload, method = m.extract(searchChartSelector, searchFallbackSelector)
		news = &model.RawSourceResult{
			Source:        model.SourceNews,
			Method:        method,
			Payload:       payload,
			EvidencePaths: m.takeShots(),
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, ErrInteractionTimeout) {
			err = fmt.Errorf("%w: %v", ErrSession, err)
		}
		s.logger.Error("收集百度指数数据失败", "error", err)
	}

	results := []model.RawSourceResult{
		finish(search, model.SourceSearch, err),
		finish(news, model.SourceNews, err),
	}
	for _, r := range results {
		s.logger.Info("数据源采集结束", "source", r.Source, "method", r.Method, "empty", r.IsEmpty())
	}
	return results
}

// finish 未完成的结果转换为带失败原因的空结果
func finish(r *model.RawSourceResult, source model.Source, err error) model.RawSourceResult {
	if r != nil {
		return *r
	}
	reason := "采集未完成"
	if err != nil {
		reason = err.Error()
	}
	return model.EmptyResult(source, model.MethodNone, reason)
}
