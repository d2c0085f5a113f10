// Package logging 初始化全局日志：每日日志文件 + 彩色控制台输出
//
// 日志文件的每一行固定为 `<时间> - <组件> - <级别> - <消息>`，外部的日志查看工具
// 按 " - " 切分为 4 段解析，组件名中不允许出现该分隔符。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const (
	// Separator 日志行字段分隔符
	Separator = " - "
	// TimeLayout 日志行时间格式
	TimeLayout = "2006-01-02 15:04:05,000"

	defaultComponent = "indexcollector"
	componentKey     = "component"
)

// Options 日志配置
type Options struct {
	Dir     string     // 日志目录
	Level   slog.Level // 最低级别
	Console io.Writer  // 控制台输出，nil 表示不输出
	Now     func() time.Time
}

// FileName 指定日期的日志文件名
func FileName(t time.Time) string {
	return fmt.Sprintf("index_collector_%s.log", t.Format("20060102"))
}

// Setup 创建日志器；返回的 io.Closer 用于关闭日志文件
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	path := filepath.Join(opts.Dir, FileName(now()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	handlers := []slog.Handler{NewLineHandler(file, opts.Level)}
	if opts.Console != nil {
		handlers = append(handlers, tint.NewHandler(opts.Console, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.DateTime,
		}))
	}

	return slog.New(fanout(handlers)), file, nil
}

// Component 返回带组件名的子日志器
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(componentKey, name)
}

// Discard 丢弃所有输出的日志器，用于测试与未注入日志器的场景
func Discard() *slog.Logger {
	return slog.New(NewLineHandler(io.Discard, slog.LevelError+1))
}

// LevelName 与日志解析方约定的级别名称
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// LineHandler 按固定 4 段格式写日志行
type LineHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	component string
	prefix    string
	attrs     []slog.Attr
}

// NewLineHandler 创建行格式处理器
func NewLineHandler(w io.Writer, level slog.Leveler) *LineHandler {
	return &LineHandler{
		mu:        &sync.Mutex{},
		w:         w,
		level:     level,
		component: defaultComponent,
	}
}

func (h *LineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(TimeLayout))
	b.WriteString(Separator)
	b.WriteString(h.component)
	b.WriteString(Separator)
	b.WriteString(LevelName(r.Level))
	b.WriteString(Separator)
	b.WriteString(oneLine(r.Message))

	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if a.Key == componentKey && h.prefix == "" {
			next.component = sanitizeComponent(a.Value.String())
			continue
		}
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(oneLine(a.Value.String()))
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func sanitizeComponent(s string) string {
	s = strings.TrimSpace(oneLine(s))
	s = strings.ReplaceAll(s, Separator, "-")
	if s == "" {
		return defaultComponent
	}
	return s
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
