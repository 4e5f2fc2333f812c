package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Message is an outbound notification email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer sends a message. Sending is best-effort from the orchestration's
// point of view: failures are queued for out-of-band retry, never propagated
// as request failures.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer delivers via plain SMTP with AUTH.
type SMTPMailer struct {
	host string
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		host: host,
		addr: host + ":" + port,
		auth: auth,
		from: from,
	}
}

// Send delivers one message under the caller's context. The dial honors the
// context directly; the SMTP conversation itself is bounded by putting the
// context deadline on the connection, since net/smtp cannot be interrupted
// mid-command.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", m.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", m.addr, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("smtp starttls with %s: %w", m.addr, err)
		}
	}
	if m.auth != nil {
		if err := c.Auth(m.auth); err != nil {
			return fmt.Errorf("smtp auth with %s: %w", m.addr, err)
		}
	}

	if err := c.Mail(m.from); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	if _, err := w.Write([]byte(m.render(msg))); err != nil {
		w.Close()
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return c.Quit()
}

func (m *SMTPMailer) render(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)
	return b.String()
}
