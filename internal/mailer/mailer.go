// Package mailer renders and delivers the service's transactional mail.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"gopkg.in/gomail.v2"
)

const (
	WelcomeSubject       = "Hello from Posts-ish"
	PasswordResetSubject = "Password Reset (Valid for 30 minutes)"
)

//go:embed templates
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type templateData struct {
	Name string
	URL  string
}

func WelcomeEmail(name, email string) (Message, error) {
	return render("welcome", WelcomeSubject, name, email, templateData{Name: name})
}

func PasswordResetEmail(name, email, resetURL string) (Message, error) {
	return render("password_reset", PasswordResetSubject, name, email, templateData{Name: name, URL: resetURL})
}

func render(name, subject, toName, to string, data templateData) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	return Message{To: to, ToName: toName, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

// SMTP delivers mail through an authenticated SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

var _ Mailer = (*SMTP)(nil)

func NewSMTP(host string, port int, username, password, from string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.compose(msg)); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}

func (s *SMTP) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

// Log records who would have been mailed instead of sending. Bodies are
// never logged since reset mail carries a live token.
type Log struct {
	logger *slog.Logger
}

var _ Mailer = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	l.logger.Info("Email not sent, no SMTP host configured",
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}
