// Package orchestrator 串联一次完整的采集：计算日期范围、采集、整理、汇总、生成报表
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"indexcollector/internal/aggregate"
	"indexcollector/internal/collector"
	"indexcollector/internal/metrics"
	"indexcollector/internal/model"
	"indexcollector/internal/normalize"
	"indexcollector/internal/notify"
	"indexcollector/internal/report"
	"indexcollector/internal/window"
)

// ErrAlreadyRunning 已有采集在运行，新的触发被拒绝
var ErrAlreadyRunning = errors.New("数据收集正在进行中")

// ErrClosed 编排器已关闭，不再接受新的触发
var ErrClosed = errors.New("采集服务正在关闭")

// 进度检查点
const (
	progressSearch    = 10
	progressSocial    = 40
	progressNormalize = 70
	progressReport    = 90
)

// notifyTimeout 默认通知时限
const notifyTimeout = time.Minute

// Options 编排器参数
type Options struct {
	Entities     []string
	ReportsDir   string
	ReportPrefix string
	Now          func() time.Time

	// NotifyTimeout 通知的总时限，<=0 时使用 notifyTimeout
	NotifyTimeout time.Duration
}

// Orchestrator 采集编排器
type Orchestrator struct {
	opts       Options
	search     collector.Source
	social     collector.Source
	normalizer *normalize.Normalizer
	renderer   *report.Renderer
	notifier   notify.Notifier
	status     *RunStatus
	logger     *slog.Logger

	mu     sync.Mutex // 保护 closed 与 wg.Add
	closed bool
	wg     sync.WaitGroup
}

// New 创建编排器；notifier 为 nil 时只写日志
func New(opts Options, search, social collector.Source, renderer *report.Renderer, notifier notify.Notifier, status *RunStatus, logger *slog.Logger) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = notifyTimeout
	}
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}
	return &Orchestrator{
		opts:       opts,
		search:     search,
		social:     social,
		normalizer: normalize.New(logger),
		renderer:   renderer,
		notifier:   notifier,
		status:     status,
		logger:     logger,
	}
}

// Status 运行状态
func (o *Orchestrator) Status() *RunStatus { return o.status }

// Run 同步执行一次采集，返回报表路径
func (o *Orchestrator) Run(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	if err := o.admit(runID); err != nil {
		return "", err
	}
	defer o.wg.Done()
	return o.execute(ctx, runID)
}

// Start 在后台执行一次采集；已有运行时立即返回 ErrAlreadyRunning
func (o *Orchestrator) Start(ctx context.Context) error {
	runID := uuid.NewString()
	if err := o.admit(runID); err != nil {
		return err
	}
	go func() {
		defer o.wg.Done()
		_, _ = o.execute(ctx, runID)
	}()
	return nil
}

// admit 占用运行槽位并登记到 wg；成功后调用方负责 wg.Done
func (o *Orchestrator) admit(runID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if !o.status.begin(runID) {
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		return ErrAlreadyRunning
	}
	o.wg.Add(1)
	return nil
}

// Close 拒绝之后的所有触发，已开始的运行不受影响
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Wait 等待所有运行结束；与 Close 配合使用
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, runID string) (path string, err error) {
	logger := o.logger.With("run_id", runID)
	started := o.opts.Now()
	w := window.Compute(started)
	metrics.Running.Set(1)

	var failures []string
	defer func() {
		if r := recover(); r != nil {
			logger.Error("采集过程发生异常", "panic", r, "stack", string(debug.Stack()))
			path, err = "", fmt.Errorf("采集过程发生异常: %v", r)
		}
		o.finish(ctx, logger, runID, w, started, path, failures, err)
	}()

	logger.Info("开始收集数据", "window", w.String(), "weekday", model.WeekdayName(started.Weekday()))

	o.status.advance(progressSearch, "正在收集百度指数数据...")
	results, serr := o.collect(ctx, o.search, w)
	if serr != nil {
		failures = append(failures, serr.Error())
	}

	o.status.advance(progressSocial, "正在收集微信指数数据...")
	more, serr := o.collect(ctx, o.social, w)
	if serr != nil {
		failures = append(failures, serr.Error())
	}
	results = append(results, more...)

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("采集被取消: %w", err)
	}

	o.status.advance(progressNormalize, "正在处理数据...")
	bySource := map[model.Source][]model.Row{}
	weekly := map[model.Source]aggregate.Weekly{}
	for _, r := range results {
		metrics.SourceResults.WithLabelValues(string(r.Source), string(r.Method)).Inc()
		if r.Failure != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Source.SheetName(), r.Failure))
		}
		if r.IsEmpty() {
			logger.Warn("数据源没有提取到数据", "source", r.Source, "method", r.Method)
		}
		rows := o.normalizer.Normalize(r, w, o.opts.Entities)
		bySource[r.Source] = rows
		weekly[r.Source] = aggregate.Aggregate(rows)
	}

	o.status.advance(progressReport, "正在生成Excel报告...")
	path = filepath.Join(o.opts.ReportsDir, report.FileName(o.opts.ReportPrefix, o.opts.Now()))
	if err := o.renderer.Render(bySource, weekly, w, path); err != nil {
		return "", err
	}
	return path, nil
}

// collect 调用单个数据源；数据源异常不影响其他数据源
func (o *Orchestrator) collect(ctx context.Context, src collector.Source, w model.Window) (results []model.RawSourceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("数据源采集发生异常", "source", src.Name(), "panic", r)
			results, err = nil, fmt.Errorf("%s: 采集发生异常: %v", src.Name(), r)
		}
	}()
	return src.Collect(ctx, w, o.opts.Entities), nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, runID string, w model.Window, started time.Time, path string, failures []string, err error) {
	finished := o.opts.Now()
	metrics.Running.Set(0)
	metrics.RunDuration.Observe(finished.Sub(started).Seconds())

	summary := notify.Summary{
		RunID:      runID,
		ReportPath: path,
		Window:     w.String(),
		Failures:   failures,
		Finished:   finished,
	}
	if err != nil {
		summary.Message = "数据收集失败: " + err.Error()
		logger.Error("数据收集失败", "error", err)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		o.status.fail(summary.Message, finished)
	} else {
		summary.Success = true
		summary.Message = "数据收集完成"
		if len(failures) > 0 {
			summary.Message = "数据收集完成（部分数据源失败: " + strings.Join(failures, "; ") + "）"
		}
		logger.Info("数据收集完成", "report", path, "failures", len(failures))
		metrics.RunsTotal.WithLabelValues("success").Inc()
		o.status.succeed(path, summary.Message, finished)
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.NotifyTimeout)
	defer cancel()
	if nerr := o.notifier.Notify(nctx, summary); nerr != nil {
		logger.Warn("发送通知失败", "error", nerr)
	}
}
