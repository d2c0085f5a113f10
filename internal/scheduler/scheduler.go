// Package scheduler 每天在固定整点检查是否需要采集（仅周一、周五执行）
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"indexcollector/internal/model"
	"indexcollector/internal/window"
)

// ErrStopTimeout 停止时等待运行中的任务超时
var ErrStopTimeout = errors.New("等待采集任务结束超时")

// Runner 一次采集
type Runner interface {
	Run(ctx context.Context) (string, error)
}

// Scheduler 定时任务
type Scheduler struct {
	cron   *cron.Cron
	entry  cron.EntryID
	runner Runner
	logger *slog.Logger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建定时任务，每天 hour 点触发
func New(runner Runner, hour int, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("采集时间必须在 0-23 之间，当前为 %d", hour)
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().In(loc) },
		ctx:    ctx,
		cancel: cancel,
	}

	spec := fmt.Sprintf("0 %d * * *", hour)
	id, err := c.AddFunc(spec, s.Tick)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("添加定时任务失败: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start 启动定时任务
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时任务已启动", "next", s.Next().Format("2006-01-02 15:04:05"))
}

// Next 下一次检查时间；未启动时为零值
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Tick 检查今天是否需要采集，需要则执行一次
func (s *Scheduler) Tick() {
	today := s.now()
	if !window.IsCollectionDay(today) {
		s.logger.Info("今天不需要收集数据", "weekday", model.WeekdayName(today.Weekday()))
		return
	}
	s.logger.Info("今天需要收集数据", "weekday", model.WeekdayName(today.Weekday()))

	path, err := s.runner.Run(s.ctx)
	if err != nil {
		s.logger.Error("定时任务执行失败", "error", err)
		return
	}
	s.logger.Info("定时任务执行完成", "report", path)
}

// Stop 停止触发新任务，取消运行中的任务并在 timeout 内等待其结束
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.cancel()
	done := s.cron.Stop()
	s.logger.Info("定时任务已停止")

	select {
	case <-done.Done():
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// cronLogger 把 cron 的日志转到 slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
