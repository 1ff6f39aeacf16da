package mail

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	KindConfirmation  = "confirmation"
	KindPasswordReset = "password_reset"

	SubjectConfirmation  = "Confirm your email"
	SubjectPasswordReset = "Reset your password"
)

type LinkConfig struct {
	BaseURL           string
	ConfirmationPath  string
	PasswordResetPath string
}

// Mailer turns one-time tokens into links and sends the matching email.
type Mailer struct {
	sender  Sender
	links   LinkConfig
	log     logging.Logger
	metrics metrics.Recorder
}

func NewMailer(sender Sender, links LinkConfig, log logging.Logger, rec metrics.Recorder) *Mailer {
	return &Mailer{sender: sender, links: links, log: log, metrics: rec}
}

type templateData struct {
	Username string
	Link     string
}

func (m *Mailer) SendConfirmation(ctx context.Context, email, token string) error {
	return m.send(ctx, KindConfirmation, "email-confirmation.html", SubjectConfirmation, email,
		m.link(m.links.ConfirmationPath, token))
}

func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.send(ctx, KindPasswordReset, "password-reset.html", SubjectPasswordReset, email,
		m.link(m.links.PasswordResetPath, token))
}

func (m *Mailer) link(path, token string) string {
	return strings.TrimRight(m.links.BaseURL, "/") + path + "/" + token
}

func (m *Mailer) send(ctx context.Context, kind, tmpl, subject, to, link string) error {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, tmpl, templateData{
		Username: common.EmailLocalPart(to),
		Link:     link,
	})
	if err == nil {
		err = m.sender.Send(ctx, to, subject, buf.String())
	}
	if err != nil {
		m.metrics.RecordMailFailure(kind)
		m.log.Error(ctx, "mail send failed", "kind", kind, "error", err)
		return err
	}

	m.metrics.RecordMailSent(kind)
	m.log.Info(ctx, "mail sent", "kind", kind)
	return nil
}
