package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bravesteps/config"
)

// Message is one reminder addressed to a user.
type Message struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"content"`
}

// Notifier delivers messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// New picks the delivery channel configured by NotifyChannel.
func New(cfg config.AppConfig, log *zap.Logger) (Notifier, error) {
	switch cfg.NotifyChannel {
	case "", "log":
		return &LogNotifier{log: log}, nil
	case "webhook":
		if cfg.NotifyWebhookURL == "" {
			return nil, fmt.Errorf("notify: webhook channel needs NOTIFY_WEBHOOK_URL")
		}
		return NewWebhookNotifier(cfg.NotifyWebhookURL, &http.Client{Timeout: 10 * time.Second}), nil
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("notify: smtp not configured")
		}
		return &MailNotifier{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("notify: unknown channel %q", cfg.NotifyChannel)
	}
}

// LogNotifier only writes the reminder to the log.
type LogNotifier struct {
	log *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, m Message) error {
	n.log.Info("reminder", zap.Uint("user_id", m.UserID), zap.String("title", m.Title), zap.String("content", m.Body))
	return nil
}

// WebhookNotifier POSTs the message as JSON and expects a 2xx answer.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// MailNotifier sends a plain text email to the user's address.
type MailNotifier struct {
	cfg config.AppConfig
}

func (n *MailNotifier) Notify(_ context.Context, m Message) error {
	if m.Email == "" {
		return fmt.Errorf("mail: user %d has no email address", m.UserID)
	}
	return sendMail(n.cfg, m.Email, m.Title, m.Body)
}

// buildMail renders headers and body. Non-ASCII header values are RFC 2047 encoded.
func buildMail(cfg config.AppConfig, to, subject, body string) []byte {
	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = "Brave Steps"
	}
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", fromName), cfg.SMTPFrom)},
		{"To", to},
		{"Subject", mime.BEncoding.Encode("UTF-8", subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

func sendMail(cfg config.AppConfig, to, subject, body string) error {
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	msg := buildMail(cfg, to, subject, body)

	if !cfg.SMTPTLS {
		return smtp.SendMail(addr, auth, cfg.SMTPFrom, []string{to}, msg)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if cfg.SMTPUsername != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(cfg.SMTPFrom); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
