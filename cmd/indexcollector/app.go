package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"indexcollector/internal/browser"
	"indexcollector/internal/collector"
	"indexcollector/internal/config"
	"indexcollector/internal/logging"
	"indexcollector/internal/notify"
	"indexcollector/internal/orchestrator"
	"indexcollector/internal/report"
	"indexcollector/internal/scheduler"
	"indexcollector/internal/server"
	"indexcollector/internal/server/handlers"
)

// 退出时等待运行中的采集的上限
const stopTimeout = 5 * time.Second

type app struct {
	cfg          *config.AppConfig
	dirs         config.Dirs
	root         *slog.Logger
	logger       *slog.Logger
	logCloser    io.Closer
	orchestrator *orchestrator.Orchestrator
}

// resolveHeadless 命令行显式指定 > 环境变量 > 配置文件 > 默认值，返回取值及来源
func resolveHeadless(cfg *config.AppConfig, info config.LoadConfigInfo, flagSet, flagValue bool) (bool, string) {
	switch {
	case flagSet:
		return flagValue, "flag"
	case info.HeadlessFromEnv:
		return cfg.Browser.Headless, "env"
	case info.HeadlessInFile:
		return cfg.Browser.Headless, "config"
	default:
		return cfg.Browser.Headless, "default"
	}
}

func newApp(f *flags, headlessChanged bool) (*app, error) {
	cfg, info, err := config.LoadConfigWithInfo(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	var headlessFrom string
	cfg.Browser.Headless, headlessFrom = resolveHeadless(cfg, info, headlessChanged, f.headless)
	if f.listen != "" {
		cfg.Server.Listen = f.listen
	}

	dirs := config.ResolveDirs(cfg, "")
	if err := config.EnsureDirs(dirs); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	root, closer, err := logging.Setup(logging.Options{Dir: dirs.Logs, Level: level, Console: os.Stderr})
	if err != nil {
		return nil, err
	}
	logger := logging.Component(root, "main")
	if info.FileFound {
		logger.Info("已加载配置文件", "path", info.Path)
	} else {
		logger.Info("未找到配置文件，使用默认配置", "path", info.Path)
		if err := config.SaveConfig(config.DefaultConfig(), info.Path); err != nil {
			logger.Warn("写入默认配置文件失败", "path", info.Path, "error", err)
		} else {
			logger.Info("已生成默认配置文件", "path", info.Path)
		}
	}

	logger.Info("浏览器模式", "headless", cfg.Browser.Headless, "from", headlessFrom)

	loc, err := cfg.Location()
	if err != nil {
		closer.Close()
		return nil, err
	}
	now := func() time.Time { return time.Now().In(loc) }

	chrome := browser.NewChrome(browser.Options{
		Headless:     cfg.Browser.Headless,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		UserAgent:    cfg.Browser.UserAgent,
		ExecPath:     cfg.Browser.ExecPath,
		PageTimeout:  cfg.PageTimeout(),
	}, logging.Component(root, "browser"))

	timeouts := collector.Timeouts{
		Page:    cfg.PageTimeout(),
		Control: cfg.WaitTimeout(),
		Chart:   cfg.WaitTimeout() + 5*time.Second,
	}
	search := collector.NewSearchTrend(chrome,
		collector.Evidence{Dir: dirs.Screenshots, Prefix: cfg.SearchTrend.ScreenshotPrefix, Now: now},
		cfg.SearchTrend.URL, timeouts, logging.Component(root, "baidu_collector"))
	social := collector.NewSocialTrend(chrome,
		collector.Evidence{Dir: dirs.Screenshots, Prefix: cfg.SocialTrend.ScreenshotPrefix, Now: now},
		cfg.SocialTrend.URL, timeouts, logging.Component(root, "wechat_collector"))

	renderer := report.NewRenderer(cfg.Collection.Entities, cfg.Collection.EntityLabel, logging.Component(root, "data_processor"))

	orchLogger := logging.Component(root, "orchestrator")
	notifiers := notify.Multi{notify.LogNotifier{Logger: logging.Component(root, "notify")}}
	if cfg.Notify.SMTPHost != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
			From:     cfg.Notify.From,
			To:       cfg.Notify.To,
			Timeout:  time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
		}))
	}

	orch := orchestrator.New(orchestrator.Options{
		Entities:     cfg.Collection.Entities,
		ReportsDir:   dirs.Reports,
		ReportPrefix: cfg.Paths.ReportPrefix,
		Now:          now,
	}, search, social, renderer, notifiers, orchestrator.NewRunStatus(), orchLogger)

	return &app{
		cfg:          cfg,
		dirs:         dirs,
		root:         root,
		logger:       logger,
		logCloser:    closer,
		orchestrator: orch,
	}, nil
}

func (a *app) Close() error {
	return a.logCloser.Close()
}

// runManual 立即执行一次
func (a *app) runManual(ctx context.Context) error {
	a.logger.Info("手动执行数据收集")
	path, err := a.orchestrator.Run(ctx)
	if err != nil {
		return err
	}
	st := a.orchestrator.Status().Snapshot()
	a.logger.Info(st.Message, "report", path)
	return nil
}

// runSchedule 启动定时任务，直到收到退出信号
func (a *app) runSchedule(ctx context.Context) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(a.orchestrator, a.cfg.Collection.Hour, loc, logging.Component(a.root, "scheduler"))
	if err != nil {
		return err
	}
	sched.Start()
	a.logger.Info("定时任务运行中，每周一、周五执行", "hour", a.cfg.Collection.Hour)

	serverErr := make(chan error, 1)
	if a.cfg.Server.Listen != "" {
		h := handlers.NewHandlers(ctx, a.orchestrator, a.orchestrator.Status(), a.dirs.Reports)
		srv := server.NewServer(server.Options{DevMode: a.cfg.Server.DevMode, Logger: logging.Component(a.root, "server")}, h)
		go func() { serverErr <- srv.Run(ctx, a.cfg.Server.Listen) }()
	}

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			a.logger.Error("状态接口退出", "error", err)
		}
	}

	a.logger.Info("正在停止定时任务...")
	stopErr := sched.Stop(stopTimeout)
	if errors.Is(stopErr, scheduler.ErrStopTimeout) {
		a.logger.Warn("等待采集任务结束超时，直接退出")
	}
	a.orchestrator.Close()
	done := make(chan struct{})
	go func() {
		a.orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		a.logger.Warn("等待手动触发的采集结束超时，直接退出")
	}
	return err
}
