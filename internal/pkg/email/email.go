package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
)

const otpSubject = "Your DriveUnity Verification Code"

// Sender 发送验证码邮件
type Sender interface {
	SendVerificationCode(ctx context.Context, to, name, code string, ttl time.Duration) error
}

// ErrDisabled 发送器未启用
var ErrDisabled = errors.New("email sender disabled")

// NewSender 未配置 SMTP 时，debug 模式只写日志，其他模式拒绝发送
func NewSender(cfg *config.EmailConfig, mode string, logger *zap.Logger) Sender {
	if cfg != nil && cfg.SMTPHost != "" {
		return NewSMTPSender(cfg)
	}
	if mode == "debug" {
		return NewLogSender(logger)
	}
	return NewDisabledSender("smtp not configured")
}

type SMTPSender struct {
	cfg *config.EmailConfig
}

func NewSMTPSender(cfg *config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendVerificationCode 发送邮箱验证码
func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, name, code string, ttl time.Duration) error {
	msg := buildMessage(s.from(), to, otpSubject, verificationBody(name, code, ttl))

	done := make(chan error, 1)
	go func() { done <- s.send(to, msg) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) from() string {
	if s.cfg.FromName == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
}

func (s *SMTPSender) send(to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, fmt.Sprint(s.cfg.SMTPPort))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}

	if !s.cfg.UseTLS {
		// smtp.SendMail 会在服务器支持时自动 STARTTLS
		return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}

	// 465 端口的隐式 TLS
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	c, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
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

// LogSender 开发环境使用，只把验证码写进日志
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(_ context.Context, to, _, code string, ttl time.Duration) error {
	s.logger.Warn("smtp not configured, verification code logged instead",
		zap.String("to", to),
		zap.String("code", code),
		zap.Duration("ttl", ttl),
	)
	return nil
}

type disabledSender struct {
	reason string
}

// NewDisabledSender 所有发送都返回错误
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationCode(context.Context, string, string, string, time.Duration) error {
	if s.reason == "" {
		return ErrDisabled
	}
	return fmt.Errorf("%s: %w", s.reason, ErrDisabled)
}

func verificationBody(name, code string, ttl time.Duration) string {
	greeting := "Hi!"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s!", html.EscapeString(name))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>%s</h2>
        <p>Your verification code is:</p>
        <h1 style="font-size: 32px; letter-spacing: 5px;">%s</h1>
        <p>This code expires in %d minutes.</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">If you did not request this code, you can ignore this email.</p>
    </div>
</body>
</html>
`, greeting, code, int(ttl.Minutes()))
}

// buildMessage 拼装 HTML 邮件，头部按固定顺序输出
func buildMessage(from, to, subject, body string) []byte {
	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
		"Date":         time.Now().Format(time.RFC1123Z),
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
