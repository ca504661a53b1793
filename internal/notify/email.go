package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

const defaultSMTPPort = 587

// EmailChannel sends plain-text mail over SMTP, with STARTTLS negotiated by
// net/smtp or implicit TLS when use_tls is set.
type EmailChannel struct {
	cfg config.EmailNotifyConfig
}

func NewEmail(cfg config.EmailNotifyConfig) *EmailChannel { return &EmailChannel{cfg: cfg} }

func (e *EmailChannel) Name() string { return "email" }
func (e *EmailChannel) IsConfigured() bool {
	return e.cfg.SMTPHost != "" && e.cfg.To != "" && e.cfg.From != ""
}

func (e *EmailChannel) Send(_ context.Context, evt Event) error {
	msg := []byte(e.message(evt))
	if e.cfg.UseTLS {
		if err := e.sendImplicitTLS(msg); err != nil {
			return fmt.Errorf("email: %w", err)
		}
		return nil
	}
	if err := smtp.SendMail(e.addr(), e.auth(), e.cfg.From, []string{e.cfg.To}, msg); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (e *EmailChannel) addr() string {
	port := e.cfg.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	return net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(port))
}

func (e *EmailChannel) auth() smtp.Auth {
	if e.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
}

func (e *EmailChannel) sendImplicitTLS(msg []byte) error {
	conn, err := tls.Dial("tcp", e.addr(), &tls.Config{ServerName: e.cfg.SMTPHost, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()
	if a := e.auth(); a != nil {
		if err := client.Auth(a); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(e.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(e.cfg.To); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// message renders evt as an RFC 5322 plain-text message with CRLF endings.
func (e *EmailChannel) message(evt Event) string {
	subject := evt.Title
	if evt.Severity != "" {
		subject = "[" + strings.ToUpper(evt.Severity) + "] " + subject
	}
	if evt.Project != "" {
		subject = "[" + evt.Project + "] " + subject
	}
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)

	text := evt.Body
	if evt.URL != "" {
		text += "\n\n" + evt.URL
	}
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", "\r\n")

	headers := [][2]string{
		{"Subject", subject},
		{"From", e.cfg.From},
		{"To", e.cfg.To},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=utf-8"},
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n" + text)
	return b.String()
}
