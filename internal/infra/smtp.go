package infra

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/Skarath13/cards/internal/config"

	"github.com/jordan-wright/email"
)

var ErrNoRecipients = errors.New("mailer: no valid recipients")

// Mailer delivers end-of-day reports over SMTP. REPORT_EMAIL may list
// several comma-separated addresses.
type Mailer struct {
	from string
	addr string
	auth smtp.Auth
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = (&mail.Address{Name: "Cards Ledger", Address: cfg.SMTPUser}).String()
	}
	m := &Mailer{
		from: from,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		send: (*email.Email).Send,
	}
	// relays on a private network often run without auth
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return m
}

// SendReport mails the report PDF to every address in to.
func (m *Mailer) SendReport(to, subject, body, filename string, pdf []byte) error {
	e, err := m.compose(to, subject, body, filename, pdf)
	if err != nil {
		return err
	}
	return m.send(e, m.addr, m.auth)
}

func (m *Mailer) compose(to, subject, body, filename string, pdf []byte) (*email.Email, error) {
	rcpts, err := recipients(to)
	if err != nil {
		return nil, err
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = rcpts
	e.Subject = subject
	e.Text = []byte(body)
	e.HTML = reportHTML(body)

	if len(pdf) > 0 {
		if filename == "" {
			filename = "report.pdf"
		}
		if _, err := e.Attach(bytes.NewReader(pdf), filename, "application/pdf"); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", filename, err)
		}
	}
	return e, nil
}

func recipients(list string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := mail.ParseAddress(part)
		if err != nil {
			return nil, fmt.Errorf("mailer: recipient %q: %w", part, err)
		}
		out = append(out, a.Address)
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

// reportHTML renders the plain body one paragraph per line.
func reportHTML(body string) []byte {
	var b strings.Builder
	b.WriteString("<html><body style=\"font-family:sans-serif\">")
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}
