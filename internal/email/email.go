// Package email sends the QR roster exports to the print service.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/inbucket/html2text"
	"github.com/wneessen/go-mail"
)

var ErrNoRecipients = errors.New("no recipients")

// SMTPConfig is the outgoing mail server configuration.
type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port" validate:"min=0,max=65535"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from" validate:"omitempty,email"`
	To       []string `mapstructure:"to" validate:"dive,email"` // print service inbox
}

// Attachment is a file sent along with a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message represents an email message
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string // optional, generated from HTML when empty
	Attachments []Attachment
}

type Client struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewClient(cfg SMTPConfig) *Client {
	return &Client{cfg: cfg, logger: slog.With("component", "email")}
}

// Build assembles msg into a go-mail message.
func (c *Client) Build(msg *Message) (*mail.Msg, error) {
	to := msg.To
	if len(to) == 0 {
		to = c.cfg.To
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	if msg.Text == "" {
		text, err := htmlToText(msg.HTML)
		if err != nil {
			return nil, fmt.Errorf("failed to convert HTML to text: %w", err)
		}
		msg.Text = text
	}

	m := mail.NewMsg()
	if err := m.From(c.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", c.cfg.From, err)
	}
	if err := m.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return m, nil
}

// Send delivers msg through the configured SMTP server.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	m, err := c.Build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}

	client, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	c.logger.Info("Mail sent", "to", msg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

// WriteTo renders msg as RFC 5322 text, for dry runs.
func (c *Client) WriteTo(w io.Writer, msg *Message) error {
	m, err := c.Build(msg)
	if err != nil {
		return err
	}
	_, err = m.WriteTo(w)
	return err
}

// htmlToText converts HTML to plain text
func htmlToText(htmlContent string) (string, error) {
	text, err := html2text.FromString(htmlContent, html2text.Options{
		PrettyTables: true,
		OmitLinks:    false,
	})
	if err != nil {
		slog.Error("failed to convert HTML to text", "error", err)
		return "", err
	}
	return text, nil
}
