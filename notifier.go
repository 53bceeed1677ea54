package auth

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultResetSubject is the subject of password reset messages
const DefaultResetSubject = "Your password reset token"

// ResetMailer renders password reset messages
type ResetMailer struct {
	subject  string
	template *pongo2.Template
}

// NewResetMailer loads password_reset.txt from the embedded templates
func NewResetMailer() (*ResetMailer, error) {
	return NewResetMailerFromFS(GetTemplatesFS(), "password_reset.txt")
}

// NewResetMailerFromFS loads the reset template name from fsys
func NewResetMailerFromFS(fsys fs.FS, name string) (*ResetMailer, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read reset template").
			WithMetadata(map[string]any{"template": name})
	}

	tpl, err := pongo2.FromString(string(raw))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse reset template").
			WithMetadata(map[string]any{"template": name})
	}

	return &ResetMailer{subject: DefaultResetSubject, template: tpl}, nil
}

// MustResetMailer is NewResetMailer that panics on error
func MustResetMailer() *ResetMailer {
	m, err := NewResetMailer()
	if err != nil {
		panic(err)
	}
	return m
}

// Render builds the message sent to user
func (m *ResetMailer) Render(user *User, resetURL string, ttl time.Duration) (Message, error) {
	body, err := m.template.Execute(pongo2.Context{
		"name":        user.Name,
		"email":       user.Email,
		"reset_url":   resetURL,
		"ttl_minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render reset message")
	}

	return Message{
		To:      user.Email,
		Subject: fmt.Sprintf("%s (valid for %d min)", m.subject, int(ttl.Minutes())),
		Body:    body,
	}, nil
}

// LogNotifier writes messages to a logger instead of delivering them
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) Send(_ context.Context, msg Message) error {
	loggerOrDefault(n.Logger).Info("notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SMTPConfig configures SMTPNotifier
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password" json:"-"`
	From     string `koanf:"from"`
}

// SMTPNotifier delivers messages over SMTP with PLAIN auth
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a notifier for cfg
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before sending email")
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprint(n.cfg.Port))
	done := make(chan error, 1)
	go func() {
		done <- n.sendMail(addr, auth, n.cfg.From, []string{msg.To}, formatMail(n.cfg.From, msg))
	}()

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while sending email")
	case err := <-done:
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
				WithMetadata(map[string]any{"to": msg.To})
		}
		return nil
	}
}

func formatMail(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
