package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Chrome 基于 chromedp 的 Launcher
type Chrome struct {
	opts   Options
	logger *slog.Logger
}

// NewChrome 创建 Chrome 启动器
func NewChrome(opts Options, logger *slog.Logger) *Chrome {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	return &Chrome{opts: opts, logger: logger}
}

// Launch 启动浏览器进程并打开一个标签页
func (c *Chrome) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.opts.WindowWidth > 0 && c.opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(c.opts.WindowWidth, c.opts.WindowHeight))
	}
	if c.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.opts.UserAgent))
	}
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// 第一次 Run 会真正启动浏览器进程，不能挂在带超时的子 context 上
	var start []chromedp.Action
	if c.opts.WindowWidth > 0 && c.opts.WindowHeight > 0 {
		start = append(start, chromedp.EmulateViewport(int64(c.opts.WindowWidth), int64(c.opts.WindowHeight)))
	}
	if err := chromedp.Run(tabCtx, start...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	c.logger.Info("浏览器驱动初始化成功", "headless", c.opts.Headless)

	return &chromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     c.opts.PageTimeout,
		logger:      c.logger,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
	closed      bool
}

func (s *chromeSession) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	err := chromedp.Run(ctx, actions...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && s.ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrWaitTimeout, err)
	}
	return err
}

func (s *chromeSession) Navigate(url string) error {
	return s.run(s.timeout, chromedp.Navigate(url))
}

func (s *chromeSession) Location() (string, error) {
	var url string
	err := s.run(s.timeout, chromedp.Location(&url))
	return url, err
}

func (s *chromeSession) WaitVisible(selector string, timeout time.Duration) error {
	return s.run(timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) SendKeys(selector, text string) error {
	return s.run(s.timeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(selector string) error {
	return s.run(s.timeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) EvaluateJSON(expr string) (string, error) {
	var out string
	err := s.run(s.timeout, chromedp.Evaluate(expr, &out))
	return out, err
}

func (s *chromeSession) Exec(script string) error {
	var ignored any
	return s.run(s.timeout, chromedp.Evaluate(script, &ignored))
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	err := s.run(s.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromeSession) Screenshot() ([]byte, error) {
	var buf []byte
	err := s.run(s.timeout, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Close 关闭标签页与浏览器进程，可重复调用
func (s *chromeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.ctx.Err() == nil {
		err = chromedp.Cancel(s.ctx)
	}
	s.cancelTab()
	s.cancelAlloc()
	if err != nil {
		s.logger.Warn("关闭浏览器时出错", "error", err)
	} else {
		s.logger.Info("浏览器驱动已关闭")
	}
	return err
}
