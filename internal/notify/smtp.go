// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// SMTPConfig configures email delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPChannel delivers messages as plain-text email.
type SMTPChannel struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPChannel creates an SMTPChannel.
func NewSMTPChannel(cfg SMTPConfig) (*SMTPChannel, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	var d net.Dialer
	return &SMTPChannel{cfg: cfg, dial: d.DialContext}, nil
}

// Name implements Channel.
func (c *SMTPChannel) Name() string { return "smtp" }

// Deliver implements Channel. The connection deadline follows ctx.
func (c *SMTPChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return oops.Code("NOTIFY_NO_RECIPIENT").With("event", msg.Event).Errorf("message has no recipient")
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return oops.With("addr", addr).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort; failures surface on I/O
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return oops.With("addr", addr).Wrap(err)
	}
	defer client.Close() //nolint:errcheck // Quit below reports the meaningful error

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return oops.With("operation", "starttls").Wrap(err)
		}
	}
	if c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return oops.With("operation", "auth").Wrap(err)
		}
	}
	if err := client.Mail(c.cfg.From); err != nil {
		return oops.With("operation", "mail from").Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return oops.With("operation", "rcpt to").Wrap(err)
	}
	w, err := client.Data()
	if err != nil {
		return oops.With("operation", "data").Wrap(err)
	}
	if _, err := w.Write(c.compose(msg)); err != nil {
		return oops.With("operation", "write body").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.With("operation", "close body").Wrap(err)
	}
	if err := client.Quit(); err != nil {
		return oops.With("operation", "quit").Wrap(err)
	}
	return nil
}

func (c *SMTPChannel) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerSafe strips line breaks so values cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
