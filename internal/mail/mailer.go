// Package mail provides SMTP email delivery for notification actions.
// This package is internal and should not be imported by external projects.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// 📧 SMTP 邮件发送器
// =============================================================================

// Config SMTP 配置
type Config struct {
	// SMTP 主机
	Host string `yaml:"host" json:"host"`
	// SMTP 端口
	Port int `yaml:"port" json:"port"`
	// 用户名（为空时不做认证）
	Username string `yaml:"username" json:"username"`
	// 密码
	Password string `yaml:"password" json:"password"`
	// 发件人地址
	From string `yaml:"from" json:"from"`
}

// Mailer 通过 SMTP 发送通知邮件，实现 flow.Mailer
type Mailer struct {
	config Config
	logger *zap.Logger

	// send 可替换的发送函数（测试用）
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer 创建 SMTP 邮件发送器
func NewMailer(config Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		config: config,
		logger: logger.With(zap.String("component", "mailer")),
		send:   smtp.SendMail,
	}
}

// Send 发送一封纯文本邮件
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.send(addr, auth, m.config.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// sanitizeHeader 去除可被用于头注入的换行
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
