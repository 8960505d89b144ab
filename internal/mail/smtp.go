// Package mail implements the transport collaborator over SMTP, with an
// optional STARTTLS upgrade before authentication.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"time"

	"github.com/mzanella/watchpot/internal/report"
)

// SMTPMailer sends reports through one SMTP server. Errors are returned
// as-is: the dispatcher treats every transport error as retryable.
type SMTPMailer struct {
	Server     string
	Port       int
	Sender     string
	Password   string
	Recipients []string
	UseTLS     bool

	// Now feeds the Date header and boundary; defaults to time.Now.
	Now func() time.Time
}

// Send assembles the MIME message and delivers it to every recipient. The
// context deadline bounds the whole exchange via the connection deadline.
func (s *SMTPMailer) Send(ctx context.Context, msg *report.Message) error {
	attachments := make([]attachmentData, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
		}
		attachments = append(attachments, attachmentData{
			Filename: att.Filename,
			MIMEType: att.MIMEType,
			Data:     data,
		})
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	raw := buildMessage(s.Sender, s.Recipients, msg.Subject, msg.Body, attachments, now())

	addr := fmt.Sprintf("%s:%d", s.Server, s.Port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set transport deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, s.Server)
	if err != nil {
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	// Encryption upgrade happens before credentials go on the wire.
	if s.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.Server}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	// Authenticate only when the server offers it. A plaintext session to a
	// local relay usually does not, and PlainAuth refuses to put credentials
	// on an unencrypted wire to a remote host anyway.
	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", s.Sender, s.Password, s.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(s.Sender); err != nil {
		return fmt.Errorf("mail from failed: %w", err)
	}
	for _, rcpt := range s.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}
