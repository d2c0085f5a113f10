// Package browser 封装浏览器自动化会话
//
// 每个会话独占一个浏览器进程；通过 WithSession 获取的会话在任何退出路径上都会被释放，
// 包括回调出错、panic 以及上层 context 被取消。
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout 等待页面控件超时
var ErrWaitTimeout = errors.New("等待页面元素超时")

// Options 浏览器启动参数
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
	ExecPath     string
	PageTimeout  time.Duration // 单次页面操作（导航、脚本、截图）的超时
}

// Session 一个已打开的浏览器会话；会话绑定到打开时的 context
type Session interface {
	Navigate(url string) error
	Location() (string, error)
	WaitVisible(selector string, timeout time.Duration) error
	SendKeys(selector, text string) error
	Click(selector string) error
	// EvaluateJSON 执行一个返回字符串的表达式（通常是 JSON.stringify(...)）
	EvaluateJSON(expr string) (string, error)
	// Exec 执行脚本，忽略返回值
	Exec(script string) error
	HTML() (string, error)
	Screenshot() ([]byte, error)
	Close() error
}

// Launcher 创建浏览器会话
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// LauncherFunc 函数适配器
type LauncherFunc func(ctx context.Context) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context) (Session, error) {
	return f(ctx)
}

// WithSession 打开会话并执行 fn，返回前无条件关闭会话
func WithSession(ctx context.Context, l Launcher, fn func(Session) error) error {
	s, err := l.Launch(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
