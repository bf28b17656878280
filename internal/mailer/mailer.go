// Package mailer delivers notification email over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"syscall"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/Zachkp/portfolio/internal/config"
)

// Message is one outbound email. HTML, when set, is sent as an alternative to Text.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FailureKind tells operators roughly why a send failed.
type FailureKind string

const (
	KindAuth       FailureKind = "auth"
	KindConnection FailureKind = "connection"
	KindOther      FailureKind = "other"
)

// SMTPSender sends through a single SMTP relay. A fresh dialer is used per
// message; nothing is pooled or retried.
type SMTPSender struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
	requireTLS    bool
}

func NewSMTPSender(cfg config.Mail) *SMTPSender {
	return &SMTPSender{
		host:          cfg.Host,
		port:          cfg.Port,
		user:          cfg.User,
		pass:          cfg.Pass,
		from:          cfg.Sender(),
		skipTLSVerify: cfg.SkipTLSVerify,
		requireTLS:    true,
	}
}

// Send blocks until the relay accepts the message or ctx is done, whichever comes first.
//
// The dialer timeout is capped at the time left on ctx, but a send that is
// abandoned once the relay has taken DATA may still be delivered.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send to %s:%d aborted - %w", s.host, s.port, err)
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	d := mail.NewDialer(s.host, s.port, s.user, s.pass)
	d.RetryFailure = false
	if s.requireTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{
		ServerName:         s.host,
		InsecureSkipVerify: s.skipTLSVerify,
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("smtp send to %s:%d aborted - %w", s.host, s.port, context.DeadlineExceeded)
		}
		d.Timeout = remaining
	}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s:%d failed - %w", s.host, s.port, err)
		}
		return nil
	case <-ctx.Done():
		// the dial goroutine finishes on its own once the dialer timeout fires
		return fmt.Errorf("smtp send to %s:%d aborted - %w", s.host, s.port, ctx.Err())
	}
}

// authCodes are the SMTP replies that mean the relay refused our credentials.
var authCodes = map[int]bool{
	530: true,
	534: true,
	535: true,
	538: true,
}

// Classify maps a send error to a FailureKind. Timeouts count as KindOther.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindOther
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindOther
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if authCodes[protoErr.Code] {
			return KindAuth
		}
		return KindOther
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unencrypted connection") || strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "username and password not accepted") {
		return KindAuth
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &recordErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}
	if strings.Contains(lower, "starttls") || strings.Contains(lower, "x509") {
		return KindConnection
	}
	return KindOther
}
