// Package mail sends transactional email over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"educbt.org/internal/config"
	"educbt.org/internal/obs"
)

const resetSubject = "EduCBT: Reset password request"

// resetBody mirrors the marketing template; [Name] and [Reset Link] are
// substituted before rendering.
const resetBody = `<!doctype html>
<html>
  <body style="font-family: sans-serif; color: #1f2937;">
    <p>Hi [Name],</p>
    <p>We received a request to reset the password of your EduCBT account.
    The link below is valid for one hour.</p>
    <p><a href="[Reset Link]" style="padding: 10px 16px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 6px;">Reset password</a></p>
    <p>If the button does not work, paste this address into your browser:<br>[Reset Link]</p>
    <p>If you did not ask for this, you can ignore this email.</p>
    <p>EduCBT Team</p>
  </body>
</html>`

var resetTemplate = template.Must(template.New("reset").Parse(
	strings.NewReplacer("[Name]", "{{.Name}}", "[Reset Link]", "{{.Link}}").Replace(resetBody),
))

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

// Mailer delivers messages through an SMTP relay.
type Mailer struct {
	addr string
	auth smtp.Auth
	from *mail.Address
}

// New validates the relay settings.
func New(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	m := &Mailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: from,
	}
	if cfg.User != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m, nil
}

// SendResetPassword renders the reset template for name and sends it to to.
func (m *Mailer) SendResetPassword(ctx context.Context, to, name, link string) error {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, struct{ Name, Link string }{name, link}); err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}
	return m.send(ctx, to, resetSubject, body.String())
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	msg := compose(m.from, rcpt, subject, html, time.Now())
	if err := sendMail(m.addr, m.auth, m.from.Address, []string{rcpt.Address}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	obs.Logger().Info("mail sent", "subject", subject, "to", rcpt.Address)
	return nil
}

func compose(from, to *mail.Address, subject, html string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(html, "\n", "\r\n"))
	return b.Bytes()
}
