package tasks

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"
)

// SendVerificationEmailJob is the job name used for verification mail.
const SendVerificationEmailJob = "send_verification_email"

// Message is an outgoing mail with a plain and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationLink appends token to verifyURL as the "token" query parameter.
func VerificationLink(verifyURL, token string) (string, error) {
	u, err := url.Parse(verifyURL)
	if err != nil {
		return "", fmt.Errorf("tasks: parse verify url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerificationMessage renders the verification mail for email.
func VerificationMessage(verifyURL, email, token string) (Message, error) {
	link, err := VerificationLink(verifyURL, token)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      email,
		Subject: "Confirm your email address",
		Text:    "Open the link below to finish verifying your email address:\n\n" + link,
		HTML: `<p>Open the link below to finish verifying your email address:</p>` +
			`<p><a href="` + html.EscapeString(link) + `">Verify email</a></p>`,
	}, nil
}

// SendVerificationEmail builds the job that mails a verification link.
func SendVerificationEmail(mailer Mailer, verifyURL, email, token string) Job {
	return Job{
		Name: SendVerificationEmailJob,
		Run: func(ctx context.Context) error {
			msg, err := VerificationMessage(verifyURL, email, token)
			if err != nil {
				return err
			}
			return mailer.Send(ctx, msg)
		},
	}
}

// LogMailer logs recipients and subjects instead of sending. Bodies carry
// tokens and are never logged.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent (log mailer)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SMTPMailer sends through a plain SMTP relay with optional PLAIN auth.
type SMTPMailer struct {
	Addr     string
	From     string
	Username string
	Password string
}

func (m SMTPMailer) Send(_ context.Context, msg Message) error {
	if m.Addr == "" || m.From == "" {
		return errors.New("tasks: smtp mailer needs Addr and From")
	}
	var auth smtp.Auth
	if m.Username != "" {
		host, _, _ := strings.Cut(m.Addr, ":")
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	return smtp.SendMail(m.Addr, auth, m.From, []string{msg.To}, buildMIME(m.From, msg))
}

func buildMIME(from string, msg Message) []byte {
	const boundary = "authcore-alt-boundary"
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")
	b.WriteString("--" + boundary + "\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text + "\r\n")
	b.WriteString("--" + boundary + "\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
