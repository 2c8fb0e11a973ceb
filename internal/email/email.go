// Package email delivers digests over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/deusflow/ainews/internal/digest"
	"github.com/deusflow/ainews/internal/retry"
)

// defaultTimeout bounds one SMTP session when the caller sets no deadline.
const defaultTimeout = 30 * time.Second

type sendFunc func(ctx context.Context, from string, to []string, msg []byte) error

type Config struct {
	Server    string
	Port      int
	Sender    string
	Password  string
	Recipient string
}

// Notifier sends each digest as a multipart text + HTML email.
type Notifier struct {
	cfg     Config
	send    sendFunc
	timeout time.Duration
	retry   retry.RetryConfig
	now     func() time.Time
	logger  *slog.Logger
}

func New(cfg Config, rc retry.RetryConfig) *Notifier {
	n := &Notifier{
		cfg:     cfg,
		timeout: defaultTimeout,
		retry:   rc,
		now:     time.Now,
		logger:  slog.Default().With("component", "email"),
	}
	n.send = n.sendMail
	return n
}

func (n *Notifier) Name() string { return "email" }

func (n *Notifier) addr() string {
	return net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))
}

func (n *Notifier) auth() smtp.Auth {
	return smtp.PlainAuth("", n.cfg.Sender, n.cfg.Password, n.cfg.Server)
}

// Notify sends d.
func (n *Notifier) Notify(ctx context.Context, d digest.Digest) error {
	msg, err := n.buildMessage(d)
	if err != nil {
		return err
	}

	err = retry.WithRetry(ctx, n.retry, func() error {
		return n.send(ctx, n.cfg.Sender, []string{n.cfg.Recipient}, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	n.logger.Info("email sent", "to", n.cfg.Recipient, "digest", d.ID)
	return nil
}

// Ping connects, upgrades to TLS and authenticates without sending.
func (n *Notifier) Ping(ctx context.Context) error {
	c, done, err := n.dial(ctx)
	if err != nil {
		return fmt.Errorf("email connection test failed: %w", err)
	}
	defer done()
	return c.Quit()
}

// sendMail is smtp.SendMail bounded by ctx: the dial, every read and write,
// and cancellation all end the session.
func (n *Notifier) sendMail(ctx context.Context, from string, to []string, msg []byte) error {
	c, done, err := n.dial(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// dial opens an authenticated session, upgrading with STARTTLS when
// offered. done releases it.
func (n *Notifier) dial(ctx context.Context) (*smtp.Client, func(), error) {
	dialer := net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.addr())
	if err != nil {
		return nil, nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(n.timeout)
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	c, err := smtp.NewClient(conn, n.cfg.Server)
	if err != nil {
		stop()
		conn.Close()
		return nil, nil, err
	}
	done := func() {
		stop()
		c.Close()
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Server}); err != nil {
			done()
			return nil, nil, fmt.Errorf("starttls: %w", err)
		}
	}
	if err := c.Auth(n.auth()); err != nil {
		done()
		return nil, nil, fmt.Errorf("smtp auth: %w", err)
	}
	return c, done, nil
}

func (n *Notifier) buildMessage(d digest.Digest) ([]byte, error) {
	htmlBody, err := d.HTML()
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", d.Text()},
		{"text/html; charset=UTF-8", htmlBody},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	from := mail.Address{Name: "AI News Summary", Address: n.cfg.Sender}
	to := mail.Address{Address: n.cfg.Recipient}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", to.String())
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", d.Subject()))
	fmt.Fprintf(&msg, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@ainews>\r\n", d.ID)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}
