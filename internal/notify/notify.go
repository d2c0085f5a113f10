// Package notify 采集完成后的通知
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

// Summary 一次运行的结果摘要
type Summary struct {
	RunID      string
	Success    bool
	Message    string
	ReportPath string
	Window     string
	Failures   []string // 失败的数据源说明
	Finished   time.Time
}

// Notifier 通知发送方
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// LogNotifier 只写日志
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, s Summary) error {
	attrs := []any{"run_id", s.RunID, "window", s.Window, "report", s.ReportPath}
	if len(s.Failures) > 0 {
		attrs = append(attrs, "failures", strings.Join(s.Failures, "; "))
	}
	if s.Success {
		n.Logger.Info(s.Message, attrs...)
	} else {
		n.Logger.Error(s.Message, attrs...)
	}
	return nil
}

// SMTPConfig 邮件服务器配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration // 单次发送的上限，<=0 时使用 DefaultSendTimeout
}

// DefaultSendTimeout 邮件发送默认超时
const DefaultSendTimeout = 30 * time.Second

// EmailNotifier 通过邮件发送结果，成功时附带报表
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailNotifier 创建邮件通知
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	return &EmailNotifier{cfg: cfg, send: deliver}
}

// Build 生成邮件内容
func (n *EmailNotifier) Build(s Summary) (*email.Email, error) {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = n.cfg.To

	status := "成功"
	if !s.Success {
		status = "失败"
	}
	e.Subject = fmt.Sprintf("运营商指数采集%s %s", status, s.Finished.Format("2006-01-02 15:04"))

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", s.Message)
	fmt.Fprintf(&body, "采集范围: %s\n", s.Window)
	fmt.Fprintf(&body, "运行编号: %s\n", s.RunID)
	for _, f := range s.Failures {
		fmt.Fprintf(&body, "- %s\n", f)
	}
	e.Text = []byte(body.String())

	if s.Success && s.ReportPath != "" {
		if _, err := e.AttachFile(s.ReportPath); err != nil {
			return nil, fmt.Errorf("附加报表 %s 失败: %w", filepath.Base(s.ReportPath), err)
		}
	}
	return e, nil
}

// Notify 发送邮件，最长等待 cfg.Timeout 或 ctx 截止
func (n *EmailNotifier) Notify(ctx context.Context, s Summary) error {
	if len(n.cfg.To) == 0 {
		return nil
	}
	e, err := n.Build(s)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.send(ctx, e, addr, auth) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("发送通知邮件失败: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("发送通知邮件超时: %w", ctx.Err())
	}
}

// deliver 走一次 SMTP 会话；连接的读写截止时间跟随 ctx，ctx 结束时连接被关闭
func deliver(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	msg, err := e.Bytes()
	if err != nil {
		return err
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("发件人地址无效: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return err
	}
	for _, to := range e.To {
		rcpt, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("收件人地址无效: %w", err)
		}
		if err := c.Rcpt(rcpt.Address); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Multi 依次调用多个通知方，返回第一个错误
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, s Summary) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
