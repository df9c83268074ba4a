package data

import (
	"context"
	"fmt"
	"io"

	"order-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"gopkg.in/gomail.v2"
)

// Attachment 邮件附件
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Mail 待发送邮件
type Mail struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer SMTP 邮件发送
type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
	log      *log.Helper
}

// NewMailer 创建 SMTP 发送器；未配置账号时发送直接跳过
func NewMailer(c *conf.Bootstrap, logger log.Logger) *Mailer {
	m := &Mailer{log: log.NewHelper(logger), fromName: defaultStoreName}
	if c.Notify == nil || c.Notify.Smtp == nil {
		return m
	}
	if c.Notify.StoreName != "" {
		m.fromName = c.Notify.StoreName
	}
	sc := c.Notify.Smtp
	if sc.Host == "" || sc.Username == "" || sc.Password == "" {
		m.log.Warn("smtp credentials not configured, emails will be skipped")
		return m
	}
	port := sc.Port
	if port == 0 {
		port = 587
	}
	m.dialer = gomail.NewDialer(sc.Host, port, sc.Username, sc.Password)
	m.from = sc.From
	if m.from == "" {
		m.from = sc.Username
	}
	return m
}

// Enabled 是否已配置 SMTP
func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

// Send 发送邮件；ctx 取消时放弃发送
func (m *Mailer) Send(ctx context.Context, mail *Mail) error {
	if !m.Enabled() {
		m.log.Warnf("smtp not configured, skipping email: to=%s, subject=%s", mail.To, mail.Subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/plain", mail.Body)
	for _, a := range mail.Attachments {
		content := a.Content
		msg.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", mail.To, err)
		}
		m.log.Infof("email sent: to=%s, subject=%s", mail.To, mail.Subject)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
